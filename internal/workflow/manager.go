package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"castsync/internal/config"
	"castsync/internal/logging"
	"castsync/internal/queue"
)

// ItemProcessor reconciles a single media item.
type ItemProcessor interface {
	Process(ctx context.Context, mediaItemID string, opts Options) (*Report, error)
}

// Manager drains the queue through an ItemProcessor.
type Manager struct {
	store        *queue.Store
	processor    ItemProcessor
	logger       *slog.Logger
	lock         *flock.Flock
	pollInterval time.Duration
	retryDelay   time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	running  bool
	lastErr  error
	lastItem *queue.Item
}

// NewManager constructs a queue worker for cfg.
func NewManager(cfg *config.Config, store *queue.Store, processor ItemProcessor, logger *slog.Logger) *Manager {
	return &Manager{
		store:        store,
		processor:    processor,
		logger:       logging.NewComponentLogger(logger, "workflow-manager"),
		lock:         flock.New(cfg.LockPath()),
		pollInterval: cfg.PollInterval(),
		retryDelay:   cfg.ErrorRetryDelay(),
		now:          time.Now,
	}
}
