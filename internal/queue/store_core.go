package queue

import (
	"context"
	"database/sql"
	"errors"

	"castsync/internal/database"
)

// Store manages queue persistence in the castsync database.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens the database at path and returns a store over it. The caller
// owns closing the store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := database.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// DB exposes the underlying handle so other stores can share it.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("queue store is closed")
	}
	return database.ExecWithRetry(ctx, s.db, query, args...)
}
