package reconcile

import (
	"context"
	"log/slog"
	"strings"

	"castsync/internal/identity"
	"castsync/internal/textnorm"
)

// adapt builds the working list from the server cast and the metadata API
// credits, and cleans the regional credits.
func (s *session) adapt(ctx context.Context) error {
	byMetadata := make(map[string]*Entry)
	for i, p := range s.in.Server {
		e := &Entry{
			IDs: PersonIDs{
				Local:    strings.TrimSpace(p.LocalID),
				Metadata: strings.TrimSpace(p.MetadataID),
				National: strings.TrimSpace(p.NationalID),
				Regional: strings.TrimSpace(p.RegionalID),
			},
			Name:      strings.TrimSpace(p.Name),
			Character: strings.TrimSpace(p.Role),
			Type:      p.Type,
			Rank:      i,
			Origin:    OriginServer,
			seq:       s.seq(),
		}
		if e.IDs.Local != "" {
			rec, err := s.view.FindByLocalID(ctx, e.IDs.Local)
			if err != nil {
				return integrityError("find local", err)
			}
			e.IDs = e.IDs.Union(idsFromRecord(rec))
		}
		s.working = append(s.working, e)
		if e.IDs.Metadata != "" && byMetadata[e.IDs.Metadata] == nil {
			byMetadata[e.IDs.Metadata] = e
		}
	}

	serverCount := len(s.working)
	enriched := make(map[*Entry]bool)
	appended := 0
	for _, credit := range s.in.Metadata {
		id := strings.TrimSpace(credit.ID)
		name := strings.TrimSpace(credit.Name)
		if id == "" && name == "" {
			continue
		}

		target := byMetadata[id]
		var rec *identity.Record
		if target == nil && id != "" {
			var err error
			rec, err = s.view.FindByMetadataID(ctx, id)
			if err != nil {
				return integrityError("find metadata", err)
			}
			if rec != nil && rec.LocalID != "" {
				target = s.serverEntry(serverCount, rec.LocalID)
			}
		}
		if target == nil && (rec == nil || rec.LocalID == "") {
			target = s.unenrichedByName(serverCount, name, enriched)
		}

		if target != nil {
			if target.Origin != OriginServer || enriched[target] {
				continue
			}
			enriched[target] = true
			target.IDs = target.IDs.Union(PersonIDs{Metadata: id}).Union(idsFromRecord(rec))
			if target.Name == "" {
				target.Name = name
			} else if target.AltName == "" && textnorm.NameKey(target.Name) != textnorm.NameKey(name) {
				target.AltName = name
			}
			if target.Character == "" {
				target.Character = strings.TrimSpace(credit.Character)
			}
			if id != "" {
				byMetadata[id] = target
			}
			continue
		}

		e := &Entry{
			IDs:        PersonIDs{Metadata: id}.Union(idsFromRecord(rec)),
			Name:       name,
			Character:  strings.TrimSpace(credit.Character),
			Type:       DefaultType,
			Rank:       serverCount + appended,
			Origin:     OriginMetadata,
			NewlyAdded: true,
			seq:        s.seq(),
		}
		appended++
		s.working = append(s.working, e)
		if id != "" {
			byMetadata[id] = e
		}
	}

	for i, c := range s.in.Regional {
		reg := regionalEntry{
			index:     i,
			ids:       PersonIDs{Regional: strings.TrimSpace(c.ID)},
			name:      strings.TrimSpace(c.Name),
			altName:   strings.TrimSpace(c.AltName),
			character: s.r.norm.CleanRole(c.Character),
		}
		if reg.name == "" && reg.altName == "" && reg.ids.Regional == "" {
			continue
		}
		s.regional = append(s.regional, reg)
	}

	s.logger.Debug("cast adapted",
		slog.Int("server", serverCount),
		slog.Int("metadata", len(s.in.Metadata)),
		slog.Int("metadata_only", appended),
		slog.Int("regional", len(s.regional)),
	)
	return nil
}

func (s *session) serverEntry(serverCount int, localID string) *Entry {
	for _, e := range s.working[:serverCount] {
		if e.IDs.Local == localID {
			return e
		}
	}
	return nil
}

// unenrichedByName pairs an unresolved credit with a server entry of the same
// name that has no metadata id of its own.
func (s *session) unenrichedByName(serverCount int, name string, enriched map[*Entry]bool) *Entry {
	key := textnorm.NameKey(name)
	if key == "" {
		return nil
	}
	for _, e := range s.working[:serverCount] {
		if enriched[e] || e.IDs.Metadata != "" {
			continue
		}
		if textnorm.NameKey(e.Name) == key {
			return e
		}
	}
	return nil
}
