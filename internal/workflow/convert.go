package workflow

import (
	"strconv"
	"strings"

	"castsync/internal/reconcile"
	"castsync/internal/services/mediaserver"
	"castsync/internal/services/regional"
	"castsync/internal/services/tmdb"
	"castsync/internal/translation"
)

func serverPeople(item *mediaserver.Item) []reconcile.ServerPerson {
	cast := item.Cast()
	out := make([]reconcile.ServerPerson, 0, len(cast))
	for _, p := range cast {
		out = append(out, reconcile.ServerPerson{
			LocalID:    strings.TrimSpace(p.ID),
			Name:       p.Name,
			Role:       p.Role,
			Type:       p.Type,
			MetadataID: p.ProviderID(mediaserver.ProviderTMDB),
			NationalID: p.ProviderID(mediaserver.ProviderIMDb),
			RegionalID: p.ProviderID(mediaserver.ProviderRegional),
		})
	}
	return out
}

func metadataCredits(credits []tmdb.Credit) []reconcile.MetadataCredit {
	out := make([]reconcile.MetadataCredit, 0, len(credits))
	for _, c := range credits {
		var id string
		if c.ID > 0 {
			id = strconv.FormatInt(c.ID, 10)
		}
		out = append(out, reconcile.MetadataCredit{
			ID:        id,
			Name:      c.Name,
			Character: c.Character,
			Order:     c.Order,
		})
	}
	return out
}

func regionalCredits(cast []regional.CastMember) []reconcile.RegionalCredit {
	out := make([]reconcile.RegionalCredit, 0, len(cast))
	for _, c := range cast {
		out = append(out, reconcile.RegionalCredit{
			ID:        c.ID,
			Name:      c.Name,
			AltName:   c.AltName,
			Character: c.Character,
		})
	}
	return out
}

func mediaContext(item *mediaserver.Item, kind string) *translation.MediaContext {
	return &translation.MediaContext{
		Title:         item.Name,
		OriginalTitle: item.OriginalTitle,
		Year:          item.ProductionYear,
		Kind:          kind,
	}
}

// serverCast renders reconciled entries as server credits. Entries without
// a local id are sent by name and provider ids; the server links or creates
// the person.
func serverCast(entries []reconcile.Entry) []mediaserver.Person {
	out := make([]mediaserver.Person, 0, len(entries))
	for _, e := range entries {
		p := mediaserver.Person{
			Name: e.Name,
			ID:   e.IDs.Local,
			Role: e.Character,
			Type: e.Type,
		}
		providers := map[string]string{}
		if e.IDs.Metadata != "" {
			providers[mediaserver.ProviderTMDB] = e.IDs.Metadata
		}
		if e.IDs.National != "" {
			providers[mediaserver.ProviderIMDb] = e.IDs.National
		}
		if e.IDs.Regional != "" {
			providers[mediaserver.ProviderRegional] = e.IDs.Regional
		}
		if len(providers) > 0 {
			p.ProviderIDs = providers
		}
		out = append(out, p)
	}
	return out
}

// sameCast reports whether writing next would leave the server unchanged.
// Only fields castsync sets are compared.
func sameCast(current, next []mediaserver.Person) bool {
	if len(current) != len(next) {
		return false
	}
	for i := range current {
		a, b := current[i], next[i]
		if a.ID != b.ID || a.Name != b.Name || a.Role != b.Role || a.Type != b.Type {
			return false
		}
		for _, key := range []string{mediaserver.ProviderTMDB, mediaserver.ProviderIMDb, mediaserver.ProviderRegional} {
			if v := b.ProviderID(key); v != "" && a.ProviderID(key) != v {
				return false
			}
		}
	}
	return true
}
