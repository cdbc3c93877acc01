package language

import (
	"strings"

	textlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// scriptTables maps ISO 15924 codes to the unicode.Scripts table names whose
// characters count as "already in the target language".
var scriptTables = map[string][]string{
	"Hans": {"Han"},
	"Hant": {"Han"},
	"Hani": {"Han"},
	"Jpan": {"Han", "Hiragana", "Katakana"},
	"Kore": {"Hangul", "Han"},
	"Latn": {"Latin"},
	"Cyrl": {"Cyrillic"},
	"Arab": {"Arabic"},
	"Grek": {"Greek"},
	"Hebr": {"Hebrew"},
	"Deva": {"Devanagari"},
	"Thai": {"Thai"},
}

// Parse returns the BCP 47 tag for code. ok is false for empty or malformed input.
func Parse(code string) (textlang.Tag, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return textlang.Und, false
	}
	tag, err := textlang.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return textlang.Und, false
	}
	return tag, true
}

// Normalize returns the canonical tag string, or "" for unrecognized input.
func Normalize(code string) string {
	tag, ok := Parse(code)
	if !ok {
		return ""
	}
	return tag.String()
}

// Scripts returns the unicode script table names used to write code, inferring
// the most likely script when the tag does not name one ("zh" -> Han).
func Scripts(code string) []string {
	tag, ok := Parse(code)
	if !ok {
		return nil
	}
	script, confidence := tag.Script()
	if confidence == textlang.No {
		return nil
	}
	tables, ok := scriptTables[script.String()]
	if !ok {
		return nil
	}
	out := make([]string, len(tables))
	copy(out, tables)
	return out
}

// DisplayName returns an English name for code, used in translation prompts.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	tag, ok := Parse(code)
	if !ok {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
