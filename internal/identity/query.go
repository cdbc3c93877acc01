package identity

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"castsync/internal/database"
)

// Lookup finds a record by any of its ids, trying them in merge-key order.
func (s *Store) Lookup(ctx context.Context, id string) (*Record, error) {
	for _, field := range mergeKeys {
		rec, err := findBy(ctx, s.db, field, id)
		if err != nil || rec != nil {
			return rec, err
		}
	}
	return nil, nil
}

// List returns records, most recently updated first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	builder := psql.Select(recordColumns...).
		From("person_identities").
		OrderBy("updated_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build identity list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM person_identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// Conflicts lists recorded id conflicts, newest first. A limit <= 0 returns all.
func (s *Store) Conflicts(ctx context.Context, limit int) ([]Conflict, error) {
	builder := psql.Select("id", "field", "value", "existing_local_id", "incoming_local_id", "display_name", "created_at").
		From("identity_conflicts").
		OrderBy("id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build conflict list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var out []Conflict
	for rows.Next() {
		var (
			c                                   Conflict
			field                               string
			existing, incoming, name, createdAt sql.NullString
		)
		if err := rows.Scan(&c.ID, &field, &c.Value, &existing, &incoming, &name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		c.Field = Field(field)
		c.ExistingLocalID = existing.String
		c.IncomingLocalID = incoming.String
		c.DisplayName = name.String
		if created, err := database.ParseTime(createdAt.String); err == nil {
			c.CreatedAt = created
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflicts: %w", err)
	}
	return out, nil
}

// ConflictCount returns how many conflicts were recorded against one external id value.
func (s *Store) ConflictCount(ctx context.Context, field Field, value string) (int, error) {
	query, args, err := psql.Select("COUNT(1)").
		From("identity_conflicts").
		Where(sq.Eq{"field": string(field), "value": value}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build conflict count: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count conflicts: %w", err)
	}
	return count, nil
}
