package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"castsync/internal/database"
)

// ErrMediaItemRequired is returned when enqueueing without a media item id.
var ErrMediaItemRequired = errors.New("media item id required")

// Enqueue adds a media item for reconciliation. An item already pending,
// processing, or deferred is returned unchanged with created=false.
func (s *Store) Enqueue(ctx context.Context, mediaItemID, title string) (item *Item, created bool, err error) {
	mediaItemID = strings.TrimSpace(mediaItemID)
	if mediaItemID == "" {
		return nil, false, ErrMediaItemRequired
	}
	if existing, err := s.FindActive(ctx, mediaItemID); err != nil || existing != nil {
		return existing, false, err
	}

	timestamp := database.FormatTime(time.Now())
	res, err := s.exec(
		ctx,
		`INSERT INTO queue_items (media_item_id, title, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		mediaItemID,
		database.NullableString(strings.TrimSpace(title)),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}
	item, err = s.GetByID(ctx, id)
	return item, true, err
}

// GetByID fetches a queue item by identifier. A miss is nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// FindActive returns the active item for a media item, if any.
func (s *Store) FindActive(ctx context.Context, mediaItemID string) (*Item, error) {
	args := append([]any{mediaItemID}, statusArgs(activeStatuses)...)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items
         WHERE media_item_id = ? AND status IN (`+makePlaceholders(len(activeStatuses))+`)
         ORDER BY id LIMIT 1`,
		args...,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active item: %w", err)
	}
	return item, nil
}

// List returns items in the given statuses (all when none), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		args = statusArgs(statuses)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Remove deletes a single item.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
