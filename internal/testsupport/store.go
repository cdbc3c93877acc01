package testsupport

import (
	"context"
	"database/sql"
	"testing"

	"castsync/internal/config"
	"castsync/internal/database"
	"castsync/internal/identity"
	"castsync/internal/logging"
	"castsync/internal/queue"
)

// MustOpenDB opens the castsync database for cfg and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *sql.DB {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	db, err := database.Open(context.Background(), cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// MustOpenStore opens a queue.Store for tests.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	return queue.NewStore(MustOpenDB(t, cfg))
}

// MustOpenIdentities opens an identity.Store on a fresh database.
func MustOpenIdentities(t testing.TB) *identity.Store {
	t.Helper()
	return identity.NewStore(MustOpenDB(t, NewConfig(t)), logging.NewNop())
}
