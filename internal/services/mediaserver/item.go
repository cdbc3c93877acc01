package mediaserver

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Provider id keys as stored by the server.
const (
	ProviderTMDB     = "Tmdb"
	ProviderIMDb     = "Imdb"
	ProviderRegional = "Douban"
)

// Person types used in the People array.
const (
	PersonActor       = "Actor"
	PersonGuestStar   = "GuestStar"
	PersonDirector    = "Director"
	PersonWriter      = "Writer"
	PersonProducer    = "Producer"
	PersonComposer    = "Composer"
	PersonUnspecified = ""
)

// Person is one credit on an item.
type Person struct {
	Name            string            `json:"Name"`
	ID              string            `json:"Id,omitempty"`
	Role            string            `json:"Role,omitempty"`
	Type            string            `json:"Type,omitempty"`
	ProviderIDs     map[string]string `json:"ProviderIds,omitempty"`
	PrimaryImageTag string            `json:"PrimaryImageTag,omitempty"`
}

// ProviderID returns a provider id, matching the key case-insensitively.
func (p Person) ProviderID(key string) string {
	return lookupProvider(p.ProviderIDs, key)
}

// IsCast reports whether the credit belongs in the cast list.
func (p Person) IsCast() bool {
	return p.Type == PersonActor || p.Type == PersonGuestStar
}

// Item is the subset of the server's item document castsync reads. The full
// document is retained so updates round-trip unknown fields.
type Item struct {
	ID             string            `json:"Id"`
	Name           string            `json:"Name"`
	OriginalTitle  string            `json:"OriginalTitle,omitempty"`
	Type           string            `json:"Type"`
	ProductionYear int               `json:"ProductionYear,omitempty"`
	ProviderIDs    map[string]string `json:"ProviderIds,omitempty"`
	People         []Person          `json:"People,omitempty"`

	raw map[string]json.RawMessage
}

// UnmarshalJSON keeps the raw document alongside the typed fields.
func (i *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	var typed plain
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Item(typed)
	i.raw = raw
	return nil
}

// ProviderID returns a provider id, matching the key case-insensitively.
func (i *Item) ProviderID(key string) string {
	return lookupProvider(i.ProviderIDs, key)
}

// Kind maps the server item type to the metadata API media kind.
func (i *Item) Kind() (string, error) {
	switch strings.ToLower(i.Type) {
	case "movie":
		return "movie", nil
	case "series":
		return "tv", nil
	default:
		return "", fmt.Errorf("unsupported item type %q", i.Type)
	}
}

// Cast returns the actor credits in server order.
func (i *Item) Cast() []Person {
	var out []Person
	for _, p := range i.People {
		if p.IsCast() {
			out = append(out, p)
		}
	}
	return out
}

// withCast builds the update document: the original item with the cast
// replaced and every non-cast credit kept in place.
func (i *Item) withCast(cast []Person) (map[string]json.RawMessage, error) {
	people := make([]Person, 0, len(cast)+len(i.People))
	people = append(people, cast...)
	for _, p := range i.People {
		if !p.IsCast() {
			people = append(people, p)
		}
	}
	encoded, err := json.Marshal(people)
	if err != nil {
		return nil, fmt.Errorf("encode people: %w", err)
	}
	doc := make(map[string]json.RawMessage, len(i.raw)+1)
	for k, v := range i.raw {
		doc[k] = v
	}
	if len(doc) == 0 {
		if doc["Id"], err = json.Marshal(i.ID); err != nil {
			return nil, err
		}
		if doc["Name"], err = json.Marshal(i.Name); err != nil {
			return nil, err
		}
	}
	doc["People"] = encoded
	return doc, nil
}

func lookupProvider(ids map[string]string, key string) string {
	if v, ok := ids[key]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range ids {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
