package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// TimeLayout is the on-disk timestamp format for every table. Fixed-width
// fractions keep stored values ordered under string comparison.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// Open connects to (creating when needed) the SQLite database at path and
// migrates it to the latest schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies every pending embedded migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, sub)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// SchemaVersion reports the highest applied migration version.
func SchemaVersion(ctx context.Context, db *sql.DB) (int64, error) {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, sub)
	if err != nil {
		return 0, fmt.Errorf("init migrations: %w", err)
	}
	return provider.GetDBVersion(ctx)
}

// IsBusy reports whether err is SQLite's "database is locked" condition.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// RetryOnBusy runs op, retrying with exponential backoff while it fails with
// a busy error. Any other error is returned immediately.
func RetryOnBusy(ctx context.Context, op func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return retry.Do(
		op,
		retry.Context(ctx),
		retry.Attempts(busyRetryAttempts),
		retry.Delay(busyRetryInitialBackoff),
		retry.MaxDelay(busyRetryMaxBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsBusy),
		retry.LastErrorOnly(true),
	)
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ExecWithRetry executes a statement under RetryOnBusy.
func ExecWithRetry(ctx context.Context, db Execer, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := RetryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// WithTx runs fn inside one write transaction, committing when fn returns nil.
// Beginning the transaction is retried on busy; fn itself is not re-run.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	var tx *sql.Tx
	if err := RetryOnBusy(ctx, func() error {
		var beginErr error
		tx, beginErr = db.BeginTx(ctx, nil)
		return beginErr
	}); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// FormatTime renders t in the storage layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses stored timestamps, accepting SQLite's CURRENT_TIMESTAMP
// layout for rows written by migrations.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(TimeLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// NullableString maps "" to SQL NULL.
func NullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
