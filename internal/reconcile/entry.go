package reconcile

import (
	"strings"

	"castsync/internal/identity"
	"castsync/internal/textnorm"
)

// Origin tags where an entry came from.
type Origin string

const (
	OriginServer     Origin = "server"
	OriginMetadata   Origin = "metadata-api"
	OriginRegional   Origin = "regional-db"
	OriginNewlyAdded Origin = "newly-added"
)

// DefaultType is the person type given to entries without one.
const DefaultType = "Actor"

// PersonIDs holds one person's ids in each namespace.
type PersonIDs struct {
	Local    string
	Metadata string
	National string
	Regional string
}

func (p PersonIDs) values() [4]string {
	return [4]string{p.Local, p.Metadata, p.National, p.Regional}
}

// Empty reports whether no id is known.
func (p PersonIDs) Empty() bool {
	return p == PersonIDs{}
}

// Union fills p's empty ids from o. Ids already on p win.
func (p PersonIDs) Union(o PersonIDs) PersonIDs {
	if p.Local == "" {
		p.Local = o.Local
	}
	if p.Metadata == "" {
		p.Metadata = o.Metadata
	}
	if p.National == "" {
		p.National = o.National
	}
	if p.Regional == "" {
		p.Regional = o.Regional
	}
	return p
}

// Shares reports whether p and o have any namespace id in common.
func (p PersonIDs) Shares(o PersonIDs) bool {
	a, b := p.values(), o.values()
	for i := range a {
		if a[i] != "" && a[i] == b[i] {
			return true
		}
	}
	return false
}

func idsFromRecord(rec *identity.Record) PersonIDs {
	if rec == nil {
		return PersonIDs{}
	}
	return PersonIDs{
		Local:    rec.LocalID,
		Metadata: rec.MetadataID,
		National: rec.NationalID,
		Regional: rec.RegionalID,
	}
}

// Entry is one cast member in the working list.
type Entry struct {
	IDs       PersonIDs
	Name      string
	AltName   string
	Character string
	Type      string
	// Rank is the display rank used for capping; Order is the final position.
	Rank       int
	Order      int
	Origin     Origin
	NewlyAdded bool
	// MatchedBy names the phase that paired the entry with a regional credit.
	MatchedBy    string
	regionalName string
	seq          int
}

// SourceID is the entry's namespace-qualified id, preferring the local
// namespace.
func (e *Entry) SourceID() string {
	switch {
	case e.IDs.Local != "":
		return "local:" + e.IDs.Local
	case e.IDs.Metadata != "":
		return "tmdb:" + e.IDs.Metadata
	case e.IDs.Regional != "":
		return "regional:" + e.IDs.Regional
	case e.IDs.National != "":
		return "imdb:" + e.IDs.National
	default:
		return "name:" + textnorm.NameKey(e.Name)
	}
}

// Matched reports whether a regional credit was merged into the entry.
func (e *Entry) Matched() bool {
	return e.MatchedBy != ""
}

func (e *Entry) nameMatches(key string) bool {
	if key == "" {
		return false
	}
	return textnorm.NameKey(e.Name) == key || textnorm.NameKey(e.AltName) == key
}

func (e *Entry) nearlyMatches(name string) bool {
	return textnorm.NearlyEqual(e.Name, name) || textnorm.NearlyEqual(e.AltName, name)
}

// record is the identity write describing the entry, taken before translation
// so stored names stay in their source script.
func (e *Entry) record() identity.Record {
	rec := identity.Record{
		LocalID:    e.IDs.Local,
		MetadataID: e.IDs.Metadata,
		NationalID: e.IDs.National,
		RegionalID: e.IDs.Regional,
	}
	if e.regionalName != "" {
		rec.RegionalName = e.regionalName
		rec.DisplayName = firstNonEmpty(e.AltName, e.Name)
	} else {
		rec.DisplayName = e.Name
	}
	return rec
}

// ServerPerson is a cast credit currently stored on the media server.
type ServerPerson struct {
	LocalID    string
	Name       string
	Role       string
	Type       string
	MetadataID string
	NationalID string
	RegionalID string
}

// MetadataCredit is a metadata API cast credit.
type MetadataCredit struct {
	ID        string
	Name      string
	Character string
	Order     int
}

// RegionalCredit is a regional database cast credit.
type RegionalCredit struct {
	ID        string
	Name      string
	AltName   string
	Character string
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
