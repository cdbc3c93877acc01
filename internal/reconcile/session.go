package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"castsync/internal/identity"
	"castsync/internal/services"
)

// regionalEntry is a regional credit after role cleaning.
type regionalEntry struct {
	index     int
	ids       PersonIDs
	name      string
	altName   string
	character string
}

// session is the transient state of one item's reconciliation.
type session struct {
	r      *Reconciler
	view   Identities
	in     Input
	id     string
	logger *slog.Logger

	// working holds server and metadata entries; added holds synthesized
	// newly-added entries. consumed marks entries already paired with a
	// regional credit.
	working  []*Entry
	added    []*Entry
	consumed map[*Entry]bool

	regional  []regionalEntry
	leftovers []regionalEntry

	final   []*Entry
	writes  []identity.Record
	capped  bool
	nextSeq int
	stats   Stats
}

func newSession(r *Reconciler, view Identities, in Input) *session {
	return &session{
		r:        r,
		view:     view,
		in:       in,
		id:       r.newID(),
		logger:   r.logger,
		consumed: make(map[*Entry]bool),
	}
}

func (s *session) seq() int {
	s.nextSeq++
	return s.nextSeq
}

// outputSize counts every entry currently bound for the final list.
func (s *session) outputSize() int {
	return len(s.working) + len(s.added)
}

// underCap reports whether the bridge phases may still add entries. Once the
// cap is reached it stays reached for the rest of the session.
func (s *session) underCap() bool {
	if s.capped {
		return false
	}
	if s.outputSize() >= s.r.maxCast {
		s.capped = true
		s.stats.CapReached = true
		s.logger.Debug("cast cap reached; skipping id bridges for remaining entries",
			slog.Int("max_cast_size", s.r.maxCast),
			slog.Int("remaining", len(s.leftovers)),
		)
	}
	return !s.capped
}

// owner returns the output entry already standing for ids, if any.
func (s *session) owner(ids PersonIDs) *Entry {
	if ids.Empty() {
		return nil
	}
	for _, e := range s.working {
		if e.IDs.Shares(ids) {
			return e
		}
	}
	for _, e := range s.added {
		if e.IDs.Shares(ids) {
			return e
		}
	}
	return nil
}

func (s *session) maxRank() int {
	rank := -1
	for _, e := range s.working {
		if e.Rank > rank {
			rank = e.Rank
		}
	}
	for _, e := range s.added {
		if e.Rank > rank {
			rank = e.Rank
		}
	}
	return rank
}

// merge applies the merge rule: the regional credit supplies name and
// character, ids are unioned, and the previous working name is kept as the
// alternate name.
func (s *session) merge(e *Entry, reg regionalEntry, phaseName string) {
	if reg.name != "" {
		if e.Name != "" && e.Name != reg.name {
			e.AltName = e.Name
		} else if e.AltName == "" {
			e.AltName = reg.altName
		}
		e.Name = reg.name
		e.regionalName = reg.name
	}
	if reg.character != "" {
		e.Character = reg.character
	}
	e.IDs = e.IDs.Union(reg.ids)
	e.MatchedBy = phaseName
	s.consumed[e] = true
}

type claimOutcome int

const (
	claimNone claimOutcome = iota
	claimMerged
	claimDuplicate
)

// claim resolves a regional credit to an identity already represented in the
// output: an unconsumed owner absorbs the credit, a consumed owner makes the
// credit a duplicate to discard.
func (s *session) claim(ids PersonIDs, reg regionalEntry, phaseName string) (*Entry, claimOutcome) {
	e := s.owner(ids)
	if e == nil {
		return nil, claimNone
	}
	if s.consumed[e] {
		s.stats.Duplicates++
		s.logger.Debug("regional credit resolves to a person already in the cast",
			slog.String("regional_id", reg.ids.Regional),
			slog.String("name", reg.name),
			slog.String("existing", e.SourceID()),
			slog.String("phase", phaseName),
		)
		return e, claimDuplicate
	}
	e.IDs = e.IDs.Union(ids)
	s.merge(e, reg, phaseName)
	return e, claimMerged
}

// synthesize appends a newly-added entry for reg after every existing rank.
func (s *session) synthesize(ids PersonIDs, reg regionalEntry, knownName, phaseName string) *Entry {
	e := &Entry{
		IDs:          ids.Union(reg.ids),
		Name:         firstNonEmpty(reg.name, knownName),
		AltName:      firstNonEmpty(knownName, reg.altName),
		Character:    reg.character,
		Type:         DefaultType,
		Rank:         s.maxRank() + 1,
		Origin:       OriginNewlyAdded,
		NewlyAdded:   true,
		MatchedBy:    phaseName,
		regionalName: reg.name,
		seq:          s.seq(),
	}
	if e.AltName == e.Name {
		e.AltName = ""
	}
	s.added = append(s.added, e)
	s.consumed[e] = true
	return e
}

// write queues an identity upsert and makes it visible to later lookups in
// this session.
func (s *session) write(ctx context.Context, rec identity.Record) error {
	if !rec.HasIDs() {
		return nil
	}
	if err := s.view.Overlay(ctx, rec); err != nil {
		return integrityError("overlay", err)
	}
	s.writes = append(s.writes, rec)
	return nil
}

func (s *session) drop(reg regionalEntry, reason string) {
	s.stats.Dropped++
	s.logger.Info("regional credit dropped",
		slog.String("regional_id", reg.ids.Regional),
		slog.String("name", reg.name),
		slog.String("reason", reason),
	)
}

func integrityError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return services.Wrap(services.ErrDataIntegrity, stageName, op, "Identity store unavailable", err)
}
