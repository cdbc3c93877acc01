package reconcile

import (
	"context"
	"errors"
	"strconv"

	"castsync/internal/logging"
	"castsync/internal/services"
	"castsync/internal/textnorm"
)

const (
	phaseRegionalID = "regional_id_bridge"
	phaseDeep       = "deep_bridge"
)

// regionalIDBridge resolves leftovers through identities already mapped to
// their regional id.
func (s *session) regionalIDBridge(ctx context.Context) error {
	pending := s.leftovers
	s.leftovers = nil
	for i, reg := range pending {
		if !s.underCap() {
			s.dropAll(pending[i:], "cast cap reached")
			return nil
		}
		if _, outcome := s.claim(reg.ids, reg, phaseRegionalID); outcome != claimNone {
			continue
		}
		if reg.ids.Regional == "" {
			s.leftovers = append(s.leftovers, reg)
			continue
		}
		rec, err := s.view.FindByRegionalID(ctx, reg.ids.Regional)
		if err != nil {
			return integrityError("find regional", err)
		}
		if rec == nil {
			s.leftovers = append(s.leftovers, reg)
			continue
		}
		ids := idsFromRecord(rec).Union(reg.ids)
		switch _, outcome := s.claim(ids, reg, phaseRegionalID); outcome {
		case claimMerged:
			s.stats.Bridged++
			continue
		case claimDuplicate:
			continue
		}
		if rec.LocalID == "" && rec.MetadataID == "" {
			s.leftovers = append(s.leftovers, reg)
			continue
		}
		s.synthesize(ids, reg, rec.DisplayName, phaseRegionalID)
		s.stats.Bridged++
	}
	return nil
}

// deepBridge resolves the remaining leftovers through the bridge id on the
// regional person detail: first against known identities, then through a
// verified metadata API lookup. Discoveries are written immediately so later
// lookups, in this session and in later items, see them.
func (s *session) deepBridge(ctx context.Context) error {
	pending := s.leftovers
	s.leftovers = nil
	if len(pending) == 0 {
		return nil
	}
	if s.r.details == nil || s.r.finder == nil {
		s.dropAll(pending, "no bridge lookup configured")
		return nil
	}
	for i, reg := range pending {
		if !s.underCap() {
			s.dropAll(pending[i:], "cast cap reached")
			return nil
		}
		if reg.ids.Regional == "" {
			s.drop(reg, "no regional id")
			continue
		}
		if err := s.deepBridgeOne(ctx, reg); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) deepBridgeOne(ctx context.Context, reg regionalEntry) error {
	detail, err := s.r.details.GetPersonDetail(ctx, reg.ids.Regional)
	if err != nil {
		if isContextErr(err) {
			return err
		}
		s.stats.DetailFailure++
		logging.WarnWithContext(s.logger, "regional person detail unavailable", "person_detail_failed",
			logging.String("regional_id", reg.ids.Regional),
			logging.String("name", reg.name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "person omitted from this run"),
		)
		s.drop(reg, "detail fetch failed")
		return nil
	}
	if detail == nil || detail.BridgeID == "" {
		s.drop(reg, "no bridge id")
		return nil
	}

	bridge := detail.BridgeID
	ids := reg.ids.Union(PersonIDs{National: bridge})
	rec, err := s.view.FindByNationalID(ctx, bridge)
	if err != nil {
		return integrityError("find national", err)
	}
	if rec != nil {
		ids = ids.Union(idsFromRecord(rec))
		handled, err := s.place(ctx, ids, reg, rec.DisplayName, rec.LocalID != "" || rec.MetadataID != "")
		if handled || err != nil {
			return err
		}
	}

	names := candidateNames(reg, detail.Names())
	person, err := s.r.finder.FindPersonByExternalID(ctx, bridge, names)
	if err != nil {
		if isContextErr(err) {
			return err
		}
		if errors.Is(err, services.ErrRateLimited) {
			// Dropping here would lose the person until the item is queued
			// again; defer the whole item instead.
			return services.Wrap(services.ErrRateLimited, stageName, phaseDeep, "Bridge id lookup rate limited", err)
		}
		logging.WarnWithContext(s.logger, "bridge id lookup failed", "bridge_lookup_failed",
			logging.String("bridge_id", bridge),
			logging.String("name", reg.name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "person omitted from this run"),
		)
		s.drop(reg, "bridge lookup failed")
		return nil
	}
	if person == nil {
		attrs := append(logging.DecisionAttrs("bridge_verification", "rejected", "no verified metadata person"),
			logging.String("bridge_id", bridge),
			logging.Strings("names", names),
		)
		s.logger.Info("bridge id not verified", logging.Args(attrs...)...)
		s.drop(reg, "bridge id not verified")
		return nil
	}

	ids.Metadata = strconv.FormatInt(person.ID, 10)
	known, err := s.view.FindByMetadataID(ctx, ids.Metadata)
	if err != nil {
		return integrityError("find metadata", err)
	}
	ids = ids.Union(idsFromRecord(known))
	_, err = s.place(ctx, ids, reg, person.Name, true)
	return err
}

// place merges reg into the owner of ids, discards it as a duplicate, or, if
// allowed, synthesizes a newly-added entry. Placed entries are written
// immediately. It reports whether reg was handled.
func (s *session) place(ctx context.Context, ids PersonIDs, reg regionalEntry, knownName string, canAdd bool) (bool, error) {
	e, outcome := s.claim(ids, reg, phaseDeep)
	switch outcome {
	case claimDuplicate:
		return true, nil
	case claimNone:
		if !canAdd {
			return false, nil
		}
		e = s.synthesize(ids, reg, knownName, phaseDeep)
	}
	s.stats.DeepBridged++
	return true, s.write(ctx, e.record())
}

func (s *session) dropAll(pending []regionalEntry, reason string) {
	for _, reg := range pending {
		s.drop(reg, reason)
	}
}

// candidateNames lists every spelling usable to verify a bridge lookup,
// without duplicates.
func candidateNames(reg regionalEntry, extra []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range append([]string{reg.name, reg.altName}, extra...) {
		key := textnorm.NameKey(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

