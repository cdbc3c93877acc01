package reconcile

import (
	"context"
	"log/slog"

	"castsync/internal/textnorm"
)

const (
	phaseExact = "exact_match"
	phaseFuzzy = "fuzzy_match"
)

// exactMatch pairs regional credits with working entries by regional id, then
// by display name, then by alternate name. Unpaired credits are carried to
// the bridge phases; an optional fuzzy pass runs over them first.
func (s *session) exactMatch(_ context.Context) error {
	var rest []regionalEntry
	for _, reg := range s.regional {
		if e := s.unconsumedByRegionalID(reg.ids.Regional); e != nil {
			s.merge(e, reg, phaseExact)
			s.stats.ExactMatched++
			continue
		}
		if e := s.unconsumedByName(reg); e != nil {
			s.merge(e, reg, phaseExact)
			s.stats.ExactMatched++
			continue
		}
		rest = append(rest, reg)
	}
	if s.r.fuzzy {
		rest = s.fuzzyPass(rest)
	}
	s.leftovers = rest
	s.logger.Debug("exact match complete",
		slog.Int("matched", s.stats.ExactMatched),
		slog.Int("fuzzy_matched", s.stats.FuzzyMatched),
		slog.Int("unmatched", len(rest)),
	)
	return nil
}

func (s *session) unconsumedByRegionalID(id string) *Entry {
	if id == "" {
		return nil
	}
	for _, e := range s.working {
		if !s.consumed[e] && e.IDs.Regional == id {
			return e
		}
	}
	return nil
}

// unconsumedByName tries the display name first, then the alternate name,
// each against every remaining working entry before moving to the next key.
func (s *session) unconsumedByName(reg regionalEntry) *Entry {
	for _, key := range []string{textnorm.NameKey(reg.name), textnorm.NameKey(reg.altName)} {
		if key == "" {
			continue
		}
		for _, e := range s.working {
			if !s.consumed[e] && e.nameMatches(key) {
				return e
			}
		}
	}
	return nil
}

// fuzzyPass is the last-resort accent- and punctuation-insensitive pairing.
func (s *session) fuzzyPass(pending []regionalEntry) []regionalEntry {
	var rest []regionalEntry
	for _, reg := range pending {
		if e := s.unconsumedNearly(reg); e != nil {
			s.merge(e, reg, phaseFuzzy)
			s.stats.FuzzyMatched++
			s.logger.Debug("fuzzy name match",
				slog.String("regional_name", reg.name),
				slog.String("working_name", firstNonEmpty(e.AltName, e.Name)),
			)
			continue
		}
		rest = append(rest, reg)
	}
	return rest
}

func (s *session) unconsumedNearly(reg regionalEntry) *Entry {
	for _, name := range []string{reg.name, reg.altName} {
		if textnorm.FuzzyKey(name) == "" {
			continue
		}
		for _, e := range s.working {
			if !s.consumed[e] && e.nearlyMatches(name) {
				return e
			}
		}
	}
	return nil
}
