package textnorm

import (
	"math"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var middleDots = strings.NewReplacer("・", "·", "•", "·", "‧", "·", "∙", "·", "⋅", "·")

// NameKey is the comparison key for exact matching: NFKC width folding, full
// case folding, unified middle dots, and collapsed whitespace.
func NameKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	folded := cases.Fold().String(norm.NFKC.String(name))
	return collapseSpace(middleDots.Replace(folded))
}

// FuzzyKey is an accent-, case-, and punctuation-insensitive key. Latin letters
// without a decomposition (ø, ł, đ) are transliterated; other scripts are kept
// as-is so CJK names still compare by identity.
func FuzzyKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	folded := cases.Fold().String(stripped)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case unicode.Is(unicode.Latin, r):
			for _, tr := range strings.ToLower(unidecode.Unidecode(string(r))) {
				if tr < unicode.MaxASCII && (unicode.IsLetter(tr) || unicode.IsDigit(tr)) {
					b.WriteRune(tr)
				}
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NearlyEqual reports whether two names share a non-empty FuzzyKey.
func NearlyEqual(a, b string) bool {
	ka := FuzzyKey(a)
	return ka != "" && ka == FuzzyKey(b)
}

// Tokens splits a name into fuzzy-keyed words.
func Tokens(name string) []string {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return isSeparator(r) || r == '.' || r == '·' || r == '・'
	})
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if key := FuzzyKey(field); key != "" {
			out = append(out, key)
		}
	}
	return out
}

// TokenSimilarity is the cosine similarity of the two names' token counts. It
// tolerates reordered given and family names ("Smith John" vs "John Smith").
func TokenSimilarity(a, b string) float64 {
	fa := tokenCounts(Tokens(a))
	fb := tokenCounts(Tokens(b))
	if len(fa) == 0 || len(fb) == 0 {
		return 0
	}
	var dot, na, nb float64
	for token, count := range fa {
		na += count * count
		dot += count * fb[token]
	}
	for _, count := range fb {
		nb += count * count
	}
	if dot == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func tokenCounts(tokens []string) map[string]float64 {
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	return counts
}
