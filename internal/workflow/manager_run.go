package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"castsync/internal/logging"
	"castsync/internal/queue"
	"castsync/internal/services"
)

// ErrWorkerLocked is returned when another worker holds the data directory
// lock.
var ErrWorkerLocked = errors.New("another castsync worker is running")

// Run processes items until ctx is cancelled, polling when the queue is
// empty.
func (m *Manager) Run(ctx context.Context) error {
	release, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	for {
		if ctx.Err() != nil {
			return nil
		}
		processed, err := m.step(ctx)
		if err != nil {
			m.handleNextItemError(ctx, err)
			continue
		}
		if !processed {
			m.wait(ctx, m.pollInterval)
		}
	}
}

// Drain processes every ready item and returns how many were handled.
func (m *Manager) Drain(ctx context.Context) (int, error) {
	release, err := m.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	count := 0
	for ctx.Err() == nil {
		processed, err := m.step(ctx)
		if err != nil {
			return count, err
		}
		if !processed {
			break
		}
		count++
	}
	return count, nil
}

func (m *Manager) acquire(ctx context.Context) (func(), error) {
	locked, err := m.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire worker lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock %s)", ErrWorkerLocked, m.lock.Path())
	}
	m.setRunning(true)

	reset, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		m.logger.Warn("reset stuck items failed; they may remain in processing",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_reset_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	} else if reset > 0 {
		m.logger.Info("requeued items left in processing",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "queue_reset"),
		)
	}

	return func() {
		m.setRunning(false)
		if err := m.lock.Unlock(); err != nil {
			m.logger.Warn("release worker lock failed", logging.Error(err))
		}
	}, nil
}

// step claims and processes one item. It reports false when nothing was
// ready.
func (m *Manager) step(ctx context.Context) (bool, error) {
	item, err := m.store.ClaimNext(ctx, m.now())
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	m.processItem(ctx, item)
	return true, nil
}

func (m *Manager) processItem(ctx context.Context, item *queue.Item) {
	// A started item finishes even if shutdown is requested meanwhile.
	itemCtx := services.WithItemID(context.WithoutCancel(ctx), item.ID)
	itemCtx = services.WithMediaItemID(itemCtx, item.MediaItemID)
	logger := logging.WithContext(itemCtx, m.logger)

	logger.Info("item started",
		logging.String(logging.FieldEventType, "item_start"),
		logging.String("title", item.DisplayTitle()),
		logging.Int("attempt", item.Attempts),
	)

	report, err := m.run(itemCtx, item)
	if err != nil {
		m.handleItemFailure(itemCtx, item, err)
		return
	}

	outcome := queue.Outcome{
		CastCount:       len(report.Cast),
		AddedCount:      report.Added(),
		TranslatedCount: report.Result.Stats.Translated,
	}
	if err := m.store.Complete(itemCtx, item.ID, outcome); err != nil {
		logger.Error("failed to persist item completion",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_update_failed"),
		)
		m.setLastError(err)
		return
	}
	item.Status = queue.StatusCompleted
	item.CastCount = outcome.CastCount
	item.AddedCount = outcome.AddedCount
	item.TranslatedCount = outcome.TranslatedCount
	if report.Item != nil && item.Title == "" {
		item.Title = report.Item.Name
	}
	m.setLastItem(item)
}

func (m *Manager) handleNextItemError(ctx context.Context, err error) {
	m.setLastError(err)
	m.logger.Error("failed to fetch next queue item",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	m.wait(ctx, m.retryDelay)
}

func (m *Manager) wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
