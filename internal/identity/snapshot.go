package identity

import (
	"context"
	"database/sql"
	"fmt"
)

// Snapshot is a session's read view of the store. Stored rows are read inside
// one transaction; records passed to Overlay shadow them so later lookups in
// the same session see the session's own discoveries before they are applied.
//
// A Snapshot is not safe for concurrent use.
type Snapshot struct {
	tx      *sql.Tx
	overlay []Record
	pending []Record
}

// Snapshot opens a read view. Callers must Close it.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin identity snapshot: %w", err)
	}
	return &Snapshot{tx: tx}, nil
}

// Close releases the read transaction. Pending records are kept.
func (s *Snapshot) Close() error {
	if s == nil || s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

func (s *Snapshot) FindByLocalID(ctx context.Context, id string) (*Record, error) {
	return s.find(ctx, FieldLocalID, id)
}

func (s *Snapshot) FindByMetadataID(ctx context.Context, id string) (*Record, error) {
	return s.find(ctx, FieldMetadataID, id)
}

func (s *Snapshot) FindByNationalID(ctx context.Context, id string) (*Record, error) {
	return s.find(ctx, FieldNationalID, id)
}

func (s *Snapshot) FindByRegionalID(ctx context.Context, id string) (*Record, error) {
	return s.find(ctx, FieldRegionalID, id)
}

// Overlay records partial as a pending write and makes the merged result
// visible to subsequent lookups.
func (s *Snapshot) Overlay(ctx context.Context, partial Record) error {
	partial = partial.trimmed()
	if !partial.HasIDs() {
		return nil
	}
	s.pending = append(s.pending, partial)

	for i, rec := range s.overlay {
		if overlayMatches(rec, partial) {
			s.overlay[i] = mergeInto(rec, partial)
			return nil
		}
	}
	base := Record{}
	if s.tx != nil {
		stored, err := resolve(ctx, s.tx, partial)
		if err != nil {
			return err
		}
		if stored != nil {
			base = *stored
		}
	}
	s.overlay = append(s.overlay, mergeInto(base, partial))
	return nil
}

// Pending returns the records queued through Overlay, in order.
func (s *Snapshot) Pending() []Record {
	return append([]Record(nil), s.pending...)
}

func (s *Snapshot) find(ctx context.Context, field Field, value string) (*Record, error) {
	if value == "" {
		return nil, nil
	}
	for _, rec := range s.overlay {
		if rec.Get(field) == value {
			out := rec
			return &out, nil
		}
	}
	if s.tx == nil {
		return nil, nil
	}
	return findBy(ctx, s.tx, field, value)
}

func overlayMatches(rec, partial Record) bool {
	if partial.LocalID != "" && rec.LocalID != "" && partial.LocalID != rec.LocalID {
		return false
	}
	for _, field := range mergeKeys {
		if value := partial.Get(field); value != "" && rec.Get(field) == value {
			return true
		}
	}
	return false
}
