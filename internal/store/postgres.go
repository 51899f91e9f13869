// Package store provides storage backends for Vicky.
//
// This file implements a PostgreSQL-backed session store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/Vicky/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return newPostgresStoreWithDB(db, cfg.SessionTTL), nil
}

// newPostgresStoreWithDB wraps an already opened and migrated handle.
func newPostgresStoreWithDB(db *sql.DB, ttl time.Duration) *PostgresStore {
	return &PostgresStore{db: db, ttl: ttl, now: time.Now}
}

func (s *PostgresStore) GetSession(ctx context.Context, senderID string) (*models.Session, error) {
	var (
		sess models.Session
		raw  []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT sender_id, flow, state, collected, created_at, updated_at FROM sessions WHERE sender_id = $1`,
		senderID,
	).Scan(&sess.SenderID, &sess.Flow, &sess.State, &raw, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sender", senderID)
		return nil, fmt.Errorf("failed to get session for %s: %w", senderID, err)
	}
	if sess.Expired(s.now(), s.ttl) {
		slog.Debug("PostgresStore GetSession expired", "sender", senderID, "updated_at", sess.UpdatedAt)
		return nil, s.DeleteSession(ctx, senderID)
	}
	sess.Collected = unmarshalCollected(senderID, raw)
	return &sess, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, sess models.Session) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	collected, err := marshalCollected(sess.Collected)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (sender_id, flow, state, collected, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sender_id) DO UPDATE SET
			flow = EXCLUDED.flow,
			state = EXCLUDED.state,
			collected = EXCLUDED.collected,
			updated_at = EXCLUDED.updated_at`,
		sess.SenderID, string(sess.Flow), string(sess.State), collected, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sender", sess.SenderID)
		return fmt.Errorf("failed to save session for %s: %w", sess.SenderID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "sender", sess.SenderID, "flow", sess.Flow, "state", sess.State)
	return nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, senderID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE sender_id = $1`, senderID); err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "sender", senderID)
		return fmt.Errorf("failed to delete session for %s: %w", senderID, err)
	}
	return nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
