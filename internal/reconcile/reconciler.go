package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"castsync/internal/identity"
	"castsync/internal/logging"
	"castsync/internal/services"
	"castsync/internal/services/regional"
	"castsync/internal/services/tmdb"
	"castsync/internal/textnorm"
	"castsync/internal/translation"
)

const stageName = "reconcile"

// DefaultMaxCastSize applies when no cap is configured.
const DefaultMaxCastSize = 50

// Identities is a session's view of the identity store.
type Identities interface {
	FindByLocalID(ctx context.Context, id string) (*identity.Record, error)
	FindByMetadataID(ctx context.Context, id string) (*identity.Record, error)
	FindByNationalID(ctx context.Context, id string) (*identity.Record, error)
	FindByRegionalID(ctx context.Context, id string) (*identity.Record, error)
	Overlay(ctx context.Context, partial identity.Record) error
}

// Translator converts names and roles into the target script. Absent keys in
// the result keep their original text.
type Translator interface {
	TranslateBatch(ctx context.Context, texts []string, mctx *translation.MediaContext) (map[string]string, error)
}

// PersonDetailer fetches regional per-person detail holding the bridge id.
type PersonDetailer interface {
	GetPersonDetail(ctx context.Context, personID string) (*regional.PersonDetail, error)
}

// PersonFinder resolves a metadata API person from a bridge id, verified
// against the supplied names.
type PersonFinder interface {
	FindPersonByExternalID(ctx context.Context, bridgeID string, names []string) (*tmdb.Person, error)
}

// Input is everything fetched for one media item.
type Input struct {
	MediaItemID string
	Server      []ServerPerson
	Metadata    []MetadataCredit
	Regional    []RegionalCredit
	Media       *translation.MediaContext
}

// Stats counts what each phase did.
type Stats struct {
	ExactMatched  int
	FuzzyMatched  int
	Bridged       int
	DeepBridged   int
	Duplicates    int
	Dropped       int
	Truncated     int
	Translated    int
	CapReached    bool
	DetailFailure int
}

// Result is a finished session.
type Result struct {
	SessionID string
	Cast      []Entry
	// Writes are the identity upserts to apply atomically for this item.
	Writes []identity.Record
	Stats  Stats
}

// Reconciler runs reconciliation sessions. It holds no per-item state and
// may be reused across items, but sessions must not run concurrently against
// the same identity store.
type Reconciler struct {
	norm       *textnorm.Normalizer
	translator Translator
	details    PersonDetailer
	finder     PersonFinder
	logger     *slog.Logger
	maxCast    int
	fuzzy      bool
	newID      func() string
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithTranslator enables the translate phase.
func WithTranslator(t Translator) Option {
	return func(r *Reconciler) {
		r.translator = t
	}
}

// WithDeepBridge enables the bridge-id phase. Both capabilities are required.
func WithDeepBridge(details PersonDetailer, finder PersonFinder) Option {
	return func(r *Reconciler) {
		r.details = details
		r.finder = finder
	}
}

// WithMaxCastSize caps the output list.
func WithMaxCastSize(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxCast = n
		}
	}
}

// WithFuzzyMatch toggles the accent-insensitive fallback in the exact-match
// phase.
func WithFuzzyMatch(enabled bool) Option {
	return func(r *Reconciler) {
		r.fuzzy = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New builds a Reconciler around the target-script normalizer.
func New(norm *textnorm.Normalizer, opts ...Option) *Reconciler {
	r := &Reconciler{
		norm:    norm,
		logger:  logging.NewNop(),
		maxCast: DefaultMaxCastSize,
		fuzzy:   true,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, stageName)
	return r
}

// MaxCastSize returns the configured cap.
func (r *Reconciler) MaxCastSize() int {
	return r.maxCast
}

type phase struct {
	name string
	run  func(*session, context.Context) error
}

var phases = []phase{
	{"adaptation", (*session).adapt},
	{"exact_match", (*session).exactMatch},
	{"regional_id_bridge", (*session).regionalIDBridge},
	{"deep_bridge", (*session).deepBridge},
	{"cap_and_reorder", (*session).capAndReorder},
	{"translate", (*session).translate},
	{"format", (*session).format},
}

// Reconcile runs one session against view. Identity read failures abort with
// services.ErrDataIntegrity; detail and translation failures only degrade
// the affected entry.
func (r *Reconciler) Reconcile(ctx context.Context, view Identities, in Input) (*Result, error) {
	if view == nil {
		return nil, services.Wrap(services.ErrDataIntegrity, stageName, "start", "Identity view required", nil)
	}
	s := newSession(r, view, in)
	ctx = services.WithRequestID(services.WithMediaItemID(ctx, in.MediaItemID), s.id)
	s.logger = logging.WithContext(ctx, r.logger)

	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.run(s, services.WithStage(ctx, p.name)); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			s.logger.Error("reconciliation aborted",
				logging.String("phase", p.name),
				logging.Error(err),
				logging.String(logging.FieldEventType, "reconcile_aborted"),
				logging.String(logging.FieldErrorHint, "retry the item once the identity store is reachable"),
			)
			return nil, err
		}
	}

	s.logger.Info("cast reconciled",
		logging.Int("cast", len(s.final)),
		logging.Int("exact_matched", s.stats.ExactMatched),
		logging.Int("fuzzy_matched", s.stats.FuzzyMatched),
		logging.Int("bridged", s.stats.Bridged+s.stats.DeepBridged),
		logging.Int("dropped", s.stats.Dropped),
		logging.Int("truncated", s.stats.Truncated),
		logging.Int("translated", s.stats.Translated),
		logging.Int("identity_writes", len(s.writes)),
	)

	cast := make([]Entry, len(s.final))
	for i, e := range s.final {
		cast[i] = *e
	}
	return &Result{
		SessionID: s.id,
		Cast:      cast,
		Writes:    s.writes,
		Stats:     s.stats,
	}, nil
}
