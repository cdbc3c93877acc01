package reconcile

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"castsync/internal/logging"
)

// capAndReorder merges entries sharing an identity, orders by rank, truncates
// to the cap before any translation is spent, and queues an identity write
// for every survivor.
func (s *session) capAndReorder(ctx context.Context) error {
	all := make([]*Entry, 0, s.outputSize())
	all = append(all, s.working...)
	all = append(all, s.added...)
	sortByRank(all)

	all = s.dedupe(all)
	if len(all) > s.r.maxCast {
		s.stats.Truncated = len(all) - s.r.maxCast
		all = all[:s.r.maxCast]
	}
	for _, e := range all {
		if err := s.write(ctx, e.record()); err != nil {
			return err
		}
	}
	s.final = all
	return nil
}

// dedupe keeps the best-ranked entry per identity. Ids are unioned into it and
// a regional match on a later duplicate supplies the localized naming. A merge
// can grow the kept ids until they overlap another kept entry, so kept entries
// are folded together until no two of them share an id.
func (s *session) dedupe(entries []*Entry) []*Entry {
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		at := slices.IndexFunc(out, func(k *Entry) bool { return k.IDs.Shares(e.IDs) })
		if at < 0 {
			out = append(out, e)
			continue
		}
		s.mergeDuplicate(out[at], e)
		out = s.foldKept(out, at)
	}
	return out
}

// foldKept merges every kept entry overlapping out[at] into the better-ranked
// of the pair, repeating until the kept set is pairwise disjoint.
func (s *session) foldKept(out []*Entry, at int) []*Entry {
	for {
		other := -1
		for i, k := range out {
			if i != at && k.IDs.Shares(out[at].IDs) {
				other = i
				break
			}
		}
		if other < 0 {
			return out
		}
		keep, drop := min(at, other), max(at, other)
		s.mergeDuplicate(out[keep], out[drop])
		out = slices.Delete(out, drop, drop+1)
		at = keep
	}
}

func (s *session) mergeDuplicate(kept, e *Entry) {
	kept.IDs = kept.IDs.Union(e.IDs)
	if !kept.Matched() && e.Matched() {
		kept.AltName = firstNonEmpty(kept.Name, kept.AltName)
		kept.Name = e.Name
		kept.Character = firstNonEmpty(e.Character, kept.Character)
		kept.regionalName = e.regionalName
		kept.MatchedBy = e.MatchedBy
	} else if kept.Character == "" {
		kept.Character = e.Character
	}
	s.stats.Duplicates++
	s.logger.Debug("merged duplicate identity",
		slog.String("kept", kept.SourceID()),
		slog.String("dropped", e.SourceID()),
	)
}

// translate batches every translatable name and character once and applies
// the results field by field. Missing results leave the text untouched.
func (s *session) translate(ctx context.Context) error {
	if s.r.translator == nil || len(s.final) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var texts []string
	for _, e := range s.final {
		for _, text := range []string{e.Name, e.Character} {
			text = strings.TrimSpace(text)
			if seen[text] || !s.r.norm.IsTranslatable(text) {
				continue
			}
			seen[text] = true
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	translated, err := s.r.translator.TranslateBatch(ctx, texts, s.in.Media)
	if err != nil {
		if isContextErr(err) {
			return err
		}
		logging.WarnWithContext(s.logger, "translation unavailable", "translation_failed",
			logging.Int("texts", len(texts)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "names and roles kept in their source script"),
		)
		return nil
	}

	apply := func(field *string) bool {
		text := strings.TrimSpace(*field)
		if !seen[text] {
			return false
		}
		out, ok := translated[text]
		if !ok || strings.TrimSpace(out) == "" {
			return false
		}
		*field = strings.TrimSpace(out)
		return true
	}
	for _, e := range s.final {
		original := e.Name
		if apply(&e.Name) {
			if e.AltName == "" {
				e.AltName = original
			}
			s.stats.Translated++
		}
		if apply(&e.Character) {
			s.stats.Translated++
		}
	}
	return nil
}

// format fixes the final order and fills output defaults.
func (s *session) format(_ context.Context) error {
	sortByRank(s.final)
	for i, e := range s.final {
		e.Order = i
		e.Name = firstNonEmpty(e.Name, e.AltName)
		e.Character = strings.TrimSpace(e.Character)
		if e.Type == "" {
			e.Type = DefaultType
		}
	}
	return nil
}

func sortByRank(entries []*Entry) {
	slices.SortStableFunc(entries, func(a, b *Entry) int {
		if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
}
