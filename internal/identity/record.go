package identity

import (
	"strings"
	"time"
)

// Field names one of the id columns of a Record.
type Field string

const (
	FieldLocalID    Field = "local_person_id"
	FieldMetadataID Field = "metadata_person_id"
	FieldNationalID Field = "national_id"
	FieldRegionalID Field = "regional_person_id"
)

// mergeKeys is the lookup precedence used to find the stored record for a
// partial update.
var mergeKeys = []Field{FieldLocalID, FieldMetadataID, FieldNationalID, FieldRegionalID}

// externalKeys are the ids that can collide between two local persons.
var externalKeys = []Field{FieldMetadataID, FieldNationalID, FieldRegionalID}

// Record is one row of the person identity table.
type Record struct {
	ID           int64
	LocalID      string
	MetadataID   string
	NationalID   string
	RegionalID   string
	DisplayName  string
	RegionalName string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Get returns the value of an id field.
func (r Record) Get(field Field) string {
	switch field {
	case FieldLocalID:
		return r.LocalID
	case FieldMetadataID:
		return r.MetadataID
	case FieldNationalID:
		return r.NationalID
	case FieldRegionalID:
		return r.RegionalID
	}
	return ""
}

func (r *Record) set(field Field, value string) {
	switch field {
	case FieldLocalID:
		r.LocalID = value
	case FieldMetadataID:
		r.MetadataID = value
	case FieldNationalID:
		r.NationalID = value
	case FieldRegionalID:
		r.RegionalID = value
	}
}

// HasIDs reports whether at least one id field is set.
func (r Record) HasIDs() bool {
	for _, field := range mergeKeys {
		if r.Get(field) != "" {
			return true
		}
	}
	return false
}

func (r Record) trimmed() Record {
	r.LocalID = strings.TrimSpace(r.LocalID)
	r.MetadataID = strings.TrimSpace(r.MetadataID)
	r.NationalID = strings.TrimSpace(r.NationalID)
	r.RegionalID = strings.TrimSpace(r.RegionalID)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.RegionalName = strings.TrimSpace(r.RegionalName)
	return r
}

// mergeInto overlays the non-empty fields of partial onto base.
func mergeInto(base, partial Record) Record {
	for _, field := range mergeKeys {
		if value := partial.Get(field); value != "" {
			base.set(field, value)
		}
	}
	if partial.DisplayName != "" {
		base.DisplayName = partial.DisplayName
	}
	if partial.RegionalName != "" {
		base.RegionalName = partial.RegionalName
	}
	return base
}

// Conflict is an external id that two different local persons claimed.
type Conflict struct {
	ID              int64
	Field           Field
	Value           string
	ExistingLocalID string
	IncomingLocalID string
	DisplayName     string
	CreatedAt       time.Time
}
