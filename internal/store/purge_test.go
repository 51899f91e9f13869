package store

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestInMemoryStorePurge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewInMemoryStore(0)
	s.now = func() time.Time { return now.Add(-48 * time.Hour) }

	old := sampleSession(now.Add(-3 * time.Hour))
	fresh := sampleSession(now)
	fresh.SenderID = "5216680000001"
	if err := s.SaveSession(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSession(ctx, fresh); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordInbound(ctx, "wamid.old", testSender); err != nil {
		t.Fatal(err)
	}

	n, err := PurgeExpired(ctx, s, now, time.Hour, DefaultDedupRetention)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	if s.SessionCount() != 1 {
		t.Errorf("fresh session should survive, count=%d", s.SessionCount())
	}
	if fresh, _ := s.RecordInbound(ctx, "wamid.old", testSender); !fresh {
		t.Error("old dedup record should be purged")
	}
}

func TestPurgeExpiredZeroTTLKeepsSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	s := NewInMemoryStore(0)
	if err := s.SaveSession(ctx, sampleSession(now.Add(-30*24*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if _, err := PurgeExpired(ctx, s, now, 0, DefaultDedupRetention); err != nil {
		t.Fatal(err)
	}
	if s.SessionCount() != 1 {
		t.Error("sessions must be kept when the TTL is disabled")
	}
}

func TestSQLiteStorePurge(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(t.TempDir(), "vicky.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.SaveSession(ctx, sampleSession(now.Add(-2*time.Hour))); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return now.Add(-48 * time.Hour) }
	if _, err := s.RecordInbound(ctx, "wamid.old", testSender); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return now }
	if _, err := s.RecordInbound(ctx, "wamid.new", testSender); err != nil {
		t.Fatal(err)
	}

	n, err := PurgeExpired(ctx, s, now, time.Hour, DefaultDedupRetention)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	if fresh, _ := s.RecordInbound(ctx, "wamid.new", testSender); fresh {
		t.Error("recent dedup record should survive")
	}
}

func TestPostgresStorePurge(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	s := newPostgresStoreWithDB(db, time.Hour)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE updated_at < $1")).
		WithArgs(now.Add(-time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM inbound_dedup WHERE received_at < $1")).
		WithArgs(now.Add(-DefaultDedupRetention)).
		WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := PurgeExpired(context.Background(), s, now, time.Hour, DefaultDedupRetention)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 8 {
		t.Errorf("removed %d, want 8", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisStorePurgeIsNoop(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	defer s.Close()
	n, err := PurgeExpired(context.Background(), s, time.Now(), time.Hour, DefaultDedupRetention)
	if err != nil || n != 0 {
		t.Errorf("PurgeExpired = %d, %v", n, err)
	}
}
