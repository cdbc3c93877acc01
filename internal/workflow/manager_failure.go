package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc/panics"

	"castsync/internal/logging"
	"castsync/internal/queue"
	"castsync/internal/services"
)

// maxDeferBackoff bounds how far a rate-limited item is pushed out.
const maxDeferBackoff = time.Hour

// run invokes the processor, turning a panic into that item's failure.
func (m *Manager) run(ctx context.Context, item *queue.Item) (report *Report, err error) {
	var catcher panics.Catcher
	catcher.Try(func() {
		report, err = m.processor.Process(ctx, item.MediaItemID, Options{})
	})
	if recovered := catcher.Recovered(); recovered != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "process", "Processor panicked", recovered.AsError())
	}
	if err == nil && report == nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "process", "Processor returned no report", nil)
	}
	return report, err
}

func (m *Manager) handleItemFailure(ctx context.Context, item *queue.Item, procErr error) {
	logger := logging.WithContext(ctx, m.logger)
	status := services.FailureStatus(procErr)
	message := strings.TrimSpace(procErr.Error())

	var retryAt *time.Time
	if status == queue.StatusDeferred {
		next := m.now().Add(m.deferBackoff(item.Attempts))
		retryAt = &next
	}

	attrs := []logging.Attr{
		logging.String("resolved_status", string(status)),
		logging.String("error_message", message),
		logging.Int("attempt", item.Attempts),
		logging.Error(procErr),
		logging.String(logging.FieldEventType, "item_failure"),
	}
	if retryAt != nil {
		attrs = append(attrs, logging.String("next_attempt_at", retryAt.Format(time.RFC3339)))
	}
	switch status {
	case queue.StatusReview:
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "check the item and castsync configuration, then run queue retry"))
	case queue.StatusFailed:
		hint := "run queue retry once the cause is resolved"
		if services.IsRetryable(procErr) {
			hint = "upstream was unavailable; run queue retry later"
		}
		attrs = append(attrs, logging.String(logging.FieldErrorHint, hint))
	}
	logger.Error("item failed", logging.Args(attrs...)...)

	if err := m.store.Fail(ctx, item.ID, status, message, retryAt); err != nil {
		logging.ErrorWithContext(logger, "failed to persist item failure", "queue_update_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database permissions and disk space"),
		)
	}

	item.Status = status
	item.ErrorMessage = message
	item.NextAttemptAt = retryAt
	m.setLastItem(item)
	m.setLastError(fmt.Errorf("item %d: %w", item.ID, procErr))
}

// deferBackoff doubles the retry delay per attempt.
func (m *Manager) deferBackoff(attempts int) time.Duration {
	delay := m.retryDelay
	if delay <= 0 {
		delay = time.Second
	}
	for i := 1; i < attempts && delay < maxDeferBackoff; i++ {
		delay *= 2
	}
	return min(delay, maxDeferBackoff)
}
