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

// ClaimNext moves the oldest ready item to processing and returns it. Pending
// items are ready immediately; deferred items once next_attempt_at has
// passed. Returns nil, nil when nothing is ready.
func (s *Store) ClaimNext(ctx context.Context, now time.Time) (*Item, error) {
	var claimed *Item
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(
			ctx,
			`SELECT `+itemColumns+` FROM queue_items
             WHERE status = ? OR (status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))
             ORDER BY COALESCE(next_attempt_at, created_at), id
             LIMIT 1`,
			StatusPending,
			StatusDeferred,
			database.FormatTime(now),
		)
		item, err := scanItem(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select next item: %w", err)
		}
		item.Status = StatusProcessing
		item.Attempts++
		item.UpdatedAt = now.UTC()
		if _, err := database.ExecWithRetry(
			ctx, tx,
			`UPDATE queue_items SET status = ?, attempts = ?, updated_at = ? WHERE id = ?`,
			item.Status, item.Attempts, database.FormatTime(now), item.ID,
		); err != nil {
			return fmt.Errorf("claim item: %w", err)
		}
		claimed = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Complete marks an item completed with its reconciliation outcome.
func (s *Store) Complete(ctx context.Context, id int64, outcome Outcome) error {
	_, err := s.exec(
		ctx,
		`UPDATE queue_items
         SET status = ?, error_message = NULL, next_attempt_at = NULL,
             cast_count = ?, added_count = ?, translated_count = ?, updated_at = ?
         WHERE id = ?`,
		StatusCompleted,
		outcome.CastCount,
		outcome.AddedCount,
		outcome.TranslatedCount,
		database.FormatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("complete item: %w", err)
	}
	return nil
}

// Fail records a failure reason under status (failed, deferred, or review).
// retryAt is only stored for deferred items.
func (s *Store) Fail(ctx context.Context, id int64, status Status, message string, retryAt *time.Time) error {
	switch status {
	case StatusFailed, StatusReview:
		retryAt = nil
	case StatusDeferred:
	default:
		return fmt.Errorf("status %q is not a failure status", status)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "processing failed"
	}
	_, err := s.exec(
		ctx,
		`UPDATE queue_items SET status = ?, error_message = ?, next_attempt_at = ?, updated_at = ? WHERE id = ?`,
		status,
		message,
		nullableTime(retryAt),
		database.FormatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("fail item: %w", err)
	}
	return nil
}

// RetryFailed moves failed and review items back to pending. With no ids
// every such item is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	retryable := []Status{StatusFailed, StatusReview}
	args := []any{StatusPending, database.FormatTime(time.Now())}
	args = append(args, statusArgs(retryable)...)
	query := `UPDATE queue_items
        SET status = ?, error_message = NULL, next_attempt_at = NULL, updated_at = ?
        WHERE status IN (` + makePlaceholders(len(retryable)) + `)`
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing returns items left in processing by a stopped worker
// to pending.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.exec(
		ctx,
		`UPDATE queue_items SET status = ?, error_message = ?, updated_at = ? WHERE status = ?`,
		StatusPending,
		WorkerStopReason,
		database.FormatTime(time.Now()),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}
