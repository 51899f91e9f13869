// Package store provides storage backends for Vicky.
//
// This file implements a Redis-backed session store. Session expiry is
// delegated to Redis key TTLs, refreshed on every save.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/Vicky/internal/models"
	"github.com/redis/go-redis/v9"
)

// dedupTTL bounds how long inbound message IDs are remembered. Providers stop
// redelivering well within a day.
const dedupTTL = 24 * time.Hour

const (
	statusReceived  = "received"
	statusProcessed = "processed"
)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// Compile-time check that RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the configured Redis server.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewRedisStore invoked", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
	if cfg.RedisAddr == "" {
		slog.Error("RedisStore address not set")
		return nil, fmt.Errorf("redis address not set")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err, "addr", cfg.RedisAddr)
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisStoreWithClient(client, cfg.SessionTTL), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("store: redis client cannot be nil")
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(senderID string) string {
	return fmt.Sprintf("vicky:session:%s", senderID)
}

func inboundKey(messageID string) string {
	return fmt.Sprintf("vicky:inbound:%s", messageID)
}

func (s *RedisStore) GetSession(ctx context.Context, senderID string) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(senderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore GetSession failed", "error", err, "sender", senderID)
		return nil, fmt.Errorf("failed to get session for %s: %w", senderID, err)
	}
	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		slog.Error("RedisStore GetSession decode failed, dropping session", "error", err, "sender", senderID)
		return nil, s.DeleteSession(ctx, senderID)
	}
	return &sess, nil
}

func (s *RedisStore) SaveSession(ctx context.Context, sess models.Session) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.SenderID), data, s.ttl).Err(); err != nil {
		slog.Error("RedisStore SaveSession failed", "error", err, "sender", sess.SenderID)
		return fmt.Errorf("failed to save session for %s: %w", sess.SenderID, err)
	}
	slog.Debug("RedisStore SaveSession succeeded", "sender", sess.SenderID, "flow", sess.Flow, "state", sess.State)
	return nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, senderID string) error {
	if err := s.client.Del(ctx, sessionKey(senderID)).Err(); err != nil {
		slog.Error("RedisStore DeleteSession failed", "error", err, "sender", senderID)
		return fmt.Errorf("failed to delete session for %s: %w", senderID, err)
	}
	return nil
}

func (s *RedisStore) RecordInbound(ctx context.Context, messageID, senderID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, inboundKey(messageID), statusReceived, dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	if !ok {
		slog.Debug("RedisStore RecordInbound duplicate", "message_id", messageID, "sender", senderID)
	}
	return ok, nil
}

func (s *RedisStore) MarkProcessed(ctx context.Context, messageID string) error {
	if err := s.client.SetXX(ctx, inboundKey(messageID), statusProcessed, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
