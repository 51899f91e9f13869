package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultDedupRetention is how long inbound message IDs are kept by Purge.
// It matches the Redis key expiry.
const DefaultDedupRetention = dedupTTL

// Purger removes rows that expiry alone would leave behind. Sessions updated
// before sessionsBefore and dedup records received before dedupBefore are
// deleted; a zero time skips that table.
type Purger interface {
	Purge(ctx context.Context, sessionsBefore, dedupBefore time.Time) (int64, error)
}

var (
	_ Purger = (*InMemoryStore)(nil)
	_ Purger = (*SQLiteStore)(nil)
	_ Purger = (*PostgresStore)(nil)
	_ Purger = (*RedisStore)(nil)
)

// PurgeExpired runs one maintenance pass against p relative to now.
// A zero sessionTTL keeps sessions.
func PurgeExpired(ctx context.Context, p Purger, now time.Time, sessionTTL, dedupRetention time.Duration) (int64, error) {
	var sessionsBefore, dedupBefore time.Time
	if sessionTTL > 0 {
		sessionsBefore = now.Add(-sessionTTL)
	}
	if dedupRetention > 0 {
		dedupBefore = now.Add(-dedupRetention)
	}
	n, err := p.Purge(ctx, sessionsBefore, dedupBefore)
	if err != nil {
		slog.Error("store.PurgeExpired failed", "error", err)
		return n, err
	}
	slog.Debug("store.PurgeExpired completed", "removed", n)
	return n, nil
}

func (s *InMemoryStore) Purge(ctx context.Context, sessionsBefore, dedupBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	if !sessionsBefore.IsZero() {
		for id, sess := range s.sessions {
			if sess.UpdatedAt.Before(sessionsBefore) {
				delete(s.sessions, id)
				n++
			}
		}
	}
	if !dedupBefore.IsZero() {
		for id, rec := range s.inbound {
			if rec.ReceivedAt.Before(dedupBefore) {
				delete(s.inbound, id)
				n++
			}
		}
	}
	return n, nil
}

func (s *SQLiteStore) Purge(ctx context.Context, sessionsBefore, dedupBefore time.Time) (int64, error) {
	var n int64
	if !sessionsBefore.IsZero() {
		res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, sessionsBefore.UTC())
		if err != nil {
			return n, fmt.Errorf("purge sessions: %w", err)
		}
		n += rowsAffected(res)
	}
	if !dedupBefore.IsZero() {
		res, err := s.db.ExecContext(ctx, `DELETE FROM inbound_dedup WHERE received_at < ?`, dedupBefore.UTC())
		if err != nil {
			return n, fmt.Errorf("purge inbound records: %w", err)
		}
		n += rowsAffected(res)
	}
	return n, nil
}

func (s *PostgresStore) Purge(ctx context.Context, sessionsBefore, dedupBefore time.Time) (int64, error) {
	var n int64
	if !sessionsBefore.IsZero() {
		res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < $1`, sessionsBefore)
		if err != nil {
			return n, fmt.Errorf("purge sessions: %w", err)
		}
		n += rowsAffected(res)
	}
	if !dedupBefore.IsZero() {
		res, err := s.db.ExecContext(ctx, `DELETE FROM inbound_dedup WHERE received_at < $1`, dedupBefore)
		if err != nil {
			return n, fmt.Errorf("purge inbound records: %w", err)
		}
		n += rowsAffected(res)
	}
	return n, nil
}

// Purge is a no-op: Redis expires session and dedup keys itself.
func (s *RedisStore) Purge(ctx context.Context, sessionsBefore, dedupBefore time.Time) (int64, error) {
	return 0, nil
}

type rowsResult interface {
	RowsAffected() (int64, error)
}

func rowsAffected(res rowsResult) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
