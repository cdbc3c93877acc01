package textnorm

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultScripts is used when a Normalizer is built without explicit scripts.
var DefaultScripts = []string{"Han"}

// Normalizer carries the target scripts; the zero value is not usable, build
// one with New.
type Normalizer struct {
	names  []string
	tables []*unicode.RangeTable
}

// New builds a Normalizer treating runes from any of the named unicode scripts
// (keys of unicode.Scripts, e.g. "Han", "Hangul") as target-script text.
func New(scripts ...string) (*Normalizer, error) {
	if len(scripts) == 0 {
		scripts = DefaultScripts
	}
	n := &Normalizer{}
	for _, name := range scripts {
		name = strings.TrimSpace(name)
		table, ok := unicode.Scripts[name]
		if !ok {
			return nil, fmt.Errorf("textnorm: unknown unicode script %q", name)
		}
		n.names = append(n.names, name)
		n.tables = append(n.tables, table)
	}
	return n, nil
}

// MustNew is New for package-level and test wiring with known script names.
func MustNew(scripts ...string) *Normalizer {
	n, err := New(scripts...)
	if err != nil {
		panic(err)
	}
	return n
}

// Scripts returns the configured script names.
func (n *Normalizer) Scripts() []string {
	return append([]string(nil), n.names...)
}

func (n *Normalizer) isTargetRune(r rune) bool {
	return unicode.In(r, n.tables...)
}

// IsTargetScript reports whether text contains at least one target-script rune.
func (n *Normalizer) IsTargetScript(text string) bool {
	for _, r := range text {
		if n.isTargetRune(r) {
			return true
		}
	}
	return false
}

// IsTranslatable reports whether text should be sent to a translation engine:
// it must contain a letter, no target-script text, and not look like initials.
func (n *Normalizer) IsTranslatable(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || !containsLetter(text) {
		return false
	}
	if n.IsTargetScript(text) {
		return false
	}
	return !LooksLikeAcronym(text)
}

// LooksLikeAcronym reports one or two upper-case Latin letters, ignoring dots
// and spaces ("JJ", "K.", "T J").
func LooksLikeAcronym(text string) bool {
	count := 0
	for _, r := range text {
		switch {
		case r == '.' || unicode.IsSpace(r):
			continue
		case r >= 'A' && r <= 'Z':
			count++
			if count > 2 {
				return false
			}
		default:
			return false
		}
	}
	return count > 0
}

func containsLetter(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
