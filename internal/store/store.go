// Package store provides session storage backends for Vicky.
//
// A session is the per-sender funnel position plus the answers collected so
// far. Backends: in-memory (default), SQLite, PostgreSQL and Redis. Every
// backend also records inbound provider message IDs so redelivered webhooks
// are processed once.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/Vicky/internal/models"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// SessionStore persists funnel sessions keyed by sender.
type SessionStore interface {
	// GetSession returns the live session for sender, or nil if there is none
	// (never created, deleted, or expired).
	GetSession(ctx context.Context, senderID string) (*models.Session, error)
	// SaveSession creates or replaces the session for s.SenderID.
	SaveSession(ctx context.Context, s models.Session) error
	// DeleteSession removes the session; deleting a missing session is not an error.
	DeleteSession(ctx context.Context, senderID string) error
}

// Store is the full storage contract used by the bot.
type Store interface {
	SessionStore
	DedupRepo
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN           string        // SQLite file path or PostgreSQL connection string
	RedisAddr     string        // host:port of the Redis server
	RedisPassword string        // optional Redis AUTH password
	SessionTTL    time.Duration // idle sessions older than this are treated as absent; 0 disables
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisAddr sets the Redis server address.
func WithRedisAddr(addr string) Option {
	return func(o *Opts) { o.RedisAddr = addr }
}

// WithRedisPassword sets the Redis password.
func WithRedisPassword(password string) Option {
	return func(o *Opts) { o.RedisPassword = password }
}

// WithSessionTTL expires sessions that have not been updated for ttl.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.SessionTTL = ttl }
}

// DetectDSNType returns "postgres" for PostgreSQL URLs or key/value DSNs and
// "sqlite" for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") || strings.Contains(d, "host=") {
		return BackendPostgres
	}
	return BackendSQLite
}

// Open builds the named backend.
func Open(backend string, opts ...Option) (Store, error) {
	slog.Debug("store.Open invoked", "backend", backend)
	switch backend {
	case "", BackendMemory:
		var cfg Opts
		for _, opt := range opts {
			opt(&cfg)
		}
		return NewInMemoryStore(cfg.SessionTTL), nil
	case BackendSQLite:
		return NewSQLiteStore(opts...)
	case BackendPostgres:
		return NewPostgresStore(opts...)
	case BackendRedis:
		return NewRedisStore(opts...)
	default:
		return nil, fmt.Errorf("unknown session store backend %q", backend)
	}
}

// InMemoryStore keeps sessions in process memory. Sessions are lost on
// restart.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	inbound  map[string]DedupRecord
	ttl      time.Duration
	now      func() time.Time
}

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store. A positive ttl expires idle sessions.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]models.Session),
		inbound:  make(map[string]DedupRecord),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *InMemoryStore) GetSession(ctx context.Context, senderID string) (*models.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[senderID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if sess.Expired(s.now(), s.ttl) {
		slog.Debug("InMemoryStore GetSession expired", "sender", senderID, "updated_at", sess.UpdatedAt)
		return nil, s.DeleteSession(ctx, senderID)
	}
	return &sess, nil
}

func (s *InMemoryStore) SaveSession(ctx context.Context, sess models.Session) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SenderID] = sess
	return nil
}

func (s *InMemoryStore) DeleteSession(ctx context.Context, senderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, senderID)
	return nil
}

// SessionCount returns the number of stored sessions, expired ones included.
func (s *InMemoryStore) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *InMemoryStore) Close() error { return nil }
