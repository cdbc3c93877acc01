package queue

import (
	"context"
	"fmt"
)

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Clear removes items in the given statuses. Active items are never removed
// implicitly: with no statuses only completed items are cleared.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		statuses = []Status{StatusCompleted}
	}
	res, err := s.exec(
		ctx,
		`DELETE FROM queue_items WHERE status IN (`+makePlaceholders(len(statuses))+`)`,
		statusArgs(statuses)...,
	)
	if err != nil {
		return 0, fmt.Errorf("clear items: %w", err)
	}
	return res.RowsAffected()
}

// ClearAll removes every item.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}
