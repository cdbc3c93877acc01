package database_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"castsync/internal/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "nested", "castsync.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenCreatesSchema(t *testing.T) {
	db := openTestDB(t)
	for _, table := range []string{"person_identities", "identity_conflicts", "translation_cache", "queue_items"} {
		var count int
		if err := db.QueryRow("SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count); err != nil {
			t.Fatalf("query sqlite_master: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected table %s to exist", table)
		}
	}
	version, err := database.SchemaVersion(context.Background(), db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version < 1 {
		t.Fatalf("expected schema version >= 1, got %d", version)
	}
}

func TestOpenIsReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "castsync.db")
	first, err := database.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := first.Exec(`INSERT INTO translation_cache (original_text, translated_text, updated_at) VALUES ('a', 'b', 'now')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = first.Close()

	second, err := database.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer second.Close()
	var translated string
	if err := second.QueryRow(`SELECT translated_text FROM translation_cache WHERE original_text = 'a'`).Scan(&translated); err != nil {
		t.Fatalf("expected row to survive reopen: %v", err)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := database.Open(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestRetryOnBusy(t *testing.T) {
	busy := errors.New("database is locked")
	calls := 0
	err := database.RetryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return busy
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}

	calls = 0
	other := errors.New("constraint failed")
	err = database.RetryOnBusy(context.Background(), func() error {
		calls++
		return other
	})
	if !errors.Is(err, other) {
		t.Fatalf("expected non-busy error to pass through, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected non-busy error to stop retries, got %d calls", calls)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sentinel := errors.New("abort")
	err := database.WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO translation_cache (original_text, translated_text, updated_at) VALUES ('x', 'y', 'now')`); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(1) FROM translation_cache`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback, found %d rows", count)
	}
}

func TestParseTime(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 10, time.UTC)
	parsed, err := database.ParseTime(database.FormatTime(now))
	if err != nil || !parsed.Equal(now) {
		t.Fatalf("round trip failed: %v %v", parsed, err)
	}
	if _, err := database.ParseTime("2024-05-06 07:08:09"); err != nil {
		t.Fatalf("expected sqlite layout to parse: %v", err)
	}
	if _, err := database.ParseTime(""); err == nil {
		t.Fatal("expected error for empty timestamp")
	}
}
