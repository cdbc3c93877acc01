package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDeferred   Status = "deferred"
	StatusReview     Status = "review"
)

// WorkerStopReason is the error message set when an in-flight item is reset
// at startup.
const WorkerStopReason = "Worker stopped before the item finished"

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusDeferred,
	StatusReview,
}

var activeStatuses = []Status{StatusPending, StatusProcessing, StatusDeferred}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(value string) (Status, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, status := range allStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// IsActive reports whether the status still awaits or undergoes processing.
func (s Status) IsActive() bool {
	for _, status := range activeStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Item represents a queue item persisted in SQLite.
type Item struct {
	ID              int64
	MediaItemID     string
	Title           string
	Status          Status
	ErrorMessage    string
	Attempts        int
	CastCount       int
	AddedCount      int
	TranslatedCount int
	NextAttemptAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Outcome summarizes a completed reconciliation.
type Outcome struct {
	CastCount       int
	AddedCount      int
	TranslatedCount int
}

// DisplayTitle prefers the item title and falls back to the media item id.
func (i Item) DisplayTitle() string {
	if title := strings.TrimSpace(i.Title); title != "" {
		return title
	}
	return i.MediaItemID
}
