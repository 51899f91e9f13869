package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// senderLockTTL releases a lock whose holder died mid-turn.
	senderLockTTL   = 30 * time.Second
	senderLockRetry = 50 * time.Millisecond
)

// ErrSenderLocked is returned when ctx ends before the sender lock is free.
var ErrSenderLocked = errors.New("sender is locked by another worker")

// SenderLocker serializes turns for one sender across processes sharing a
// backend. Stores that only live in one process do not implement it.
type SenderLocker interface {
	LockSender(ctx context.Context, senderID string) (unlock func(), err error)
}

// Compile-time check that RedisStore implements SenderLocker.
var _ SenderLocker = (*RedisStore)(nil)

// releaseSenderLock deletes the key only while it still holds our token, so
// a holder whose lock expired cannot free a lock taken by someone else.
var releaseSenderLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func senderLockKey(senderID string) string {
	return fmt.Sprintf("vicky:lock:%s", senderID)
}

// LockSender takes the sender's lock with SET NX, polling until it is free
// or ctx ends.
func (s *RedisStore) LockSender(ctx context.Context, senderID string) (func(), error) {
	key := senderLockKey(senderID)
	token := uuid.NewString()
	ticker := time.NewTicker(senderLockRetry)
	defer ticker.Stop()

	for {
		ok, err := s.client.SetNX(ctx, key, token, senderLockTTL).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("lock sender %s: %w", senderID, err)
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := releaseSenderLock.Run(ctx, s.client, []string{key}, token).Err(); err != nil {
					slog.Warn("RedisStore.LockSender: release failed", "sender", senderID, "error", err)
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock sender %s: %w", senderID, errors.Join(ErrSenderLocked, ctx.Err()))
		case <-ticker.C:
		}
	}
}
