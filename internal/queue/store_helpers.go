package queue

import (
	"database/sql"
	"strings"
	"time"

	"castsync/internal/database"
)

const itemColumns = "id, media_item_id, title, status, error_message, attempts, cast_count, added_count, translated_count, next_attempt_at, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item          Item
		title         sql.NullString
		statusStr     string
		errorMessage  sql.NullString
		nextAttemptAt sql.NullString
		createdRaw    string
		updatedRaw    string
	)
	if err := scanner.Scan(
		&item.ID,
		&item.MediaItemID,
		&title,
		&statusStr,
		&errorMessage,
		&item.Attempts,
		&item.CastCount,
		&item.AddedCount,
		&item.TranslatedCount,
		&nextAttemptAt,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	item.Title = title.String
	item.Status = Status(statusStr)
	item.ErrorMessage = errorMessage.String
	if nextAttemptAt.Valid {
		if next, err := database.ParseTime(nextAttemptAt.String); err == nil {
			item.NextAttemptAt = &next
		}
	}
	if created, err := database.ParseTime(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := database.ParseTime(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return &item, nil
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return database.FormatTime(*value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}
	return args
}
