package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"castsync/internal/identity"
	"castsync/internal/logging"
	"castsync/internal/reconcile"
	"castsync/internal/services"
	"castsync/internal/services/mediaserver"
	"castsync/internal/services/tmdb"
	"castsync/internal/source"
)

const stageName = "workflow"

// MediaServer reads an item's cast and writes the reconciled cast back.
type MediaServer interface {
	GetItemDetails(ctx context.Context, itemID string) (*mediaserver.Item, error)
	UpdateItemCast(ctx context.Context, item *mediaserver.Item, cast []mediaserver.Person) error
}

// CreditSource returns metadata API credits for a movie or series.
type CreditSource interface {
	GetCredits(ctx context.Context, kind string, id int64) ([]tmdb.Credit, error)
}

// RegionalSource locates the regional cast for an item.
type RegionalSource interface {
	Attempt(ctx context.Context, req source.Request) (*source.Result, error)
}

// IdentityStore opens session snapshots and applies their writes.
type IdentityStore interface {
	Snapshot(ctx context.Context) (*identity.Snapshot, error)
	ApplyBatch(ctx context.Context, batch []identity.Record) error
}

// Options alter a single Process call.
type Options struct {
	// DryRun reconciles without persisting identities or writing back.
	DryRun bool
}

// Report describes one processed item.
type Report struct {
	Item             *mediaserver.Item
	Result           *reconcile.Result
	Cast             []mediaserver.Person
	RegionalStrategy string
	Changed          bool
	Written          bool
	Duration         time.Duration
}

// Added counts entries that were not on the server before.
func (r *Report) Added() int {
	if r == nil || r.Result == nil {
		return 0
	}
	n := 0
	for _, e := range r.Result.Cast {
		if e.NewlyAdded {
			n++
		}
	}
	return n
}

// Processor reconciles one media item at a time.
type Processor struct {
	server     MediaServer
	credits    CreditSource
	regional   RegionalSource
	identities IdentityStore
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

// NewProcessor wires a processor. credits and regional may be nil, in which
// case the corresponding cast list is empty.
func NewProcessor(server MediaServer, credits CreditSource, regional RegionalSource, identities IdentityStore, reconciler *reconcile.Reconciler, logger *slog.Logger) *Processor {
	return &Processor{
		server:     server,
		credits:    credits,
		regional:   regional,
		identities: identities,
		reconciler: reconciler,
		logger:     logging.NewComponentLogger(logger, "processor"),
	}
}

// Process reconciles the cast of mediaItemID.
func (p *Processor) Process(ctx context.Context, mediaItemID string, opts Options) (*Report, error) {
	start := time.Now()
	ctx = services.WithMediaItemID(ctx, mediaItemID)
	logger := logging.WithContext(ctx, p.logger)

	item, err := p.server.GetItemDetails(ctx, mediaItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, services.Wrap(services.ErrNotFound, stageName, "fetch item", "Media item not found", nil)
	}
	kind, err := item.Kind()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "fetch item", err.Error(), nil)
	}

	metadata, err := p.fetchCredits(ctx, logger, item, kind)
	if err != nil {
		return nil, err
	}
	regionalRes, err := p.fetchRegional(ctx, logger, item)
	if err != nil {
		return nil, err
	}

	in := reconcile.Input{
		MediaItemID: item.ID,
		Server:      serverPeople(item),
		Metadata:    metadataCredits(metadata),
		Media:       mediaContext(item, kind),
	}
	report := &Report{Item: item}
	if regionalRes != nil {
		in.Regional = regionalCredits(regionalRes.Cast)
		report.RegionalStrategy = regionalRes.Strategy
	}

	result, err := p.reconcile(ctx, in)
	if err != nil {
		return nil, err
	}
	report.Result = result
	report.Cast = serverCast(result.Cast)
	report.Changed = !sameCast(item.Cast(), report.Cast)

	if opts.DryRun {
		report.Duration = time.Since(start)
		logger.Info("dry run finished",
			logging.String(logging.FieldEventType, "dry_run_complete"),
			logging.Int("cast", len(report.Cast)),
			logging.Bool("changed", report.Changed),
			logging.Int("identity_writes", len(result.Writes)),
		)
		return report, nil
	}

	if err := p.identities.ApplyBatch(ctx, result.Writes); err != nil {
		return nil, err
	}

	if report.Changed {
		if err := p.server.UpdateItemCast(ctx, item, report.Cast); err != nil {
			return nil, err
		}
		report.Written = true
	} else {
		logger.Info("cast unchanged; write-back skipped",
			logging.String(logging.FieldEventType, "write_back_skipped"),
		)
	}
	report.Duration = time.Since(start)
	logger.Info("item processed",
		logging.String(logging.FieldEventType, "item_processed"),
		logging.String("title", item.Name),
		logging.Int("cast", len(report.Cast)),
		logging.Int("added", report.Added()),
		logging.Int("translated", result.Stats.Translated),
		logging.Bool("written", report.Written),
		logging.Duration("duration", report.Duration),
	)
	return report, nil
}

// reconcile runs a session against a fresh snapshot. The snapshot is closed
// before the caller applies the session's writes.
func (p *Processor) reconcile(ctx context.Context, in reconcile.Input) (*reconcile.Result, error) {
	snap, err := p.identities.Snapshot(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, stageName, "snapshot", "Identity store unavailable", err)
	}
	defer snap.Close()
	return p.reconciler.Reconcile(ctx, snap, in)
}

func (p *Processor) fetchCredits(ctx context.Context, logger *slog.Logger, item *mediaserver.Item, kind string) ([]tmdb.Credit, error) {
	if p.credits == nil {
		return nil, nil
	}
	raw := item.ProviderID(mediaserver.ProviderTMDB)
	if raw == "" {
		logger.Info("item has no metadata id; metadata credits skipped",
			logging.String(logging.FieldEventType, "metadata_credits_skipped"),
		)
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		logging.WarnWithContext(logger, "metadata id is not numeric; metadata credits skipped", "metadata_id_invalid",
			logging.String("metadata_id", raw),
			logging.String(logging.FieldImpact, "cast is reconciled without metadata credits"),
		)
		return nil, nil
	}
	credits, err := p.credits.GetCredits(ctx, kind, id)
	if errors.Is(err, services.ErrNotFound) {
		logging.WarnWithContext(logger, "metadata title not found; metadata credits skipped", "metadata_credits_missing",
			logging.String("metadata_id", raw),
			logging.String(logging.FieldImpact, "cast is reconciled without metadata credits"),
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch metadata credits: %w", err)
	}
	return credits, nil
}

func (p *Processor) fetchRegional(ctx context.Context, logger *slog.Logger, item *mediaserver.Item) (*source.Result, error) {
	if p.regional == nil {
		return nil, nil
	}
	res, err := p.regional.Attempt(ctx, source.Request{
		SubjectID:     item.ProviderID(mediaserver.ProviderRegional),
		Title:         item.Name,
		OriginalTitle: item.OriginalTitle,
		Year:          item.ProductionYear,
	})
	if errors.Is(err, services.ErrNotFound) {
		logger.Info("regional cast not found",
			logging.String(logging.FieldEventType, "regional_cast_missing"),
			logging.Error(err),
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch regional cast: %w", err)
	}
	return res, nil
}
