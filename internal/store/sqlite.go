// Package store provides storage backends for Vicky.
//
// This file implements an SQLite-backed session store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/Vicky/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "", "ttl", cfg.SessionTTL)

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY under concurrent webhook turns.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "dsn", dsn)

	return &SQLiteStore{db: db, ttl: cfg.SessionTTL, now: time.Now}, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, senderID string) (*models.Session, error) {
	var (
		sess models.Session
		raw  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT sender_id, flow, state, collected, created_at, updated_at FROM sessions WHERE sender_id = ?`,
		senderID,
	).Scan(&sess.SenderID, &sess.Flow, &sess.State, &raw, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "sender", senderID)
		return nil, fmt.Errorf("failed to get session for %s: %w", senderID, err)
	}
	if sess.Expired(s.now(), s.ttl) {
		slog.Debug("SQLiteStore GetSession expired", "sender", senderID, "updated_at", sess.UpdatedAt)
		return nil, s.DeleteSession(ctx, senderID)
	}
	sess.Collected = unmarshalCollected(senderID, []byte(raw))
	return &sess, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, sess models.Session) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	collected, err := marshalCollected(sess.Collected)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (sender_id, flow, state, collected, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.SenderID, string(sess.Flow), string(sess.State), string(collected), sess.CreatedAt.UTC(), sess.UpdatedAt.UTC(),
	)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "sender", sess.SenderID)
		return fmt.Errorf("failed to save session for %s: %w", sess.SenderID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "sender", sess.SenderID, "flow", sess.Flow, "state", sess.State)
	return nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, senderID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE sender_id = ?`, senderID); err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "sender", senderID)
		return fmt.Errorf("failed to delete session for %s: %w", senderID, err)
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
