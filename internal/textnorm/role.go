package textnorm

import (
	"regexp"
	"strings"
	"unicode"
)

// bracketPair matches one innermost bracketed span of any supported style.
var bracketPair = regexp.MustCompile(`[(\[（【［〔][^(\[（【［〔)\]）】］〕]*[)\]）】］〕]`)

const bracketRunes = "()[]（）【】［］〔〕"

// roleMarkers are stripped from either end of a character string under the
// same rule. Boundary markers only match next to a separator so "演员" is not
// cut to "员".
var roleMarkers = []struct {
	token    string
	boundary bool
}{
	{"portrayed by", true},
	{"voiced by", true},
	{"voice of", true},
	{"played by", true},
	{"plays", true},
	{"饰演", false},
	{"扮演", false},
	{"饰", false},
	{"配音", true},
	{"演", true},
}

const maxCleanPasses = 16

// CleanRole canonicalizes a character/role string. The result is a fixpoint:
// CleanRole(CleanRole(s)) == CleanRole(s).
func (n *Normalizer) CleanRole(raw string) string {
	current := collapseSpace(raw)
	for range maxCleanPasses {
		next := n.cleanRolePass(current)
		if next == current {
			return current
		}
		current = next
	}
	return current
}

func (n *Normalizer) cleanRolePass(s string) string {
	s = stripBrackets(s)
	s = trimSeparators(collapseSpace(s))
	for {
		rest, ok := cutPrefixFold(s, "as ")
		if !ok {
			break
		}
		s = trimSeparators(rest)
	}
	s = stripRoleMarkers(s)
	s = n.truncateDualScript(s)
	return trimSeparators(s)
}

func stripBrackets(s string) string {
	for {
		next := bracketPair.ReplaceAllString(s, " ")
		if next == s {
			break
		}
		s = next
	}
	if strings.ContainsAny(s, bracketRunes) {
		s = strings.Map(func(r rune) rune {
			if strings.ContainsRune(bracketRunes, r) {
				return ' '
			}
			return r
		}, s)
	}
	return s
}

func stripRoleMarkers(s string) string {
	for changed := true; changed && s != ""; {
		changed = false
		for _, marker := range roleMarkers {
			if rest, ok := cutPrefixFold(s, marker.token); ok && (!marker.boundary || rest == "" || startsWithSeparator(rest)) {
				s = trimSeparators(rest)
				changed = true
			}
			if rest, ok := cutSuffixFold(s, marker.token); ok && (!marker.boundary || rest == "" || endsWithSeparator(rest)) {
				s = trimSeparators(rest)
				changed = true
			}
		}
	}
	return s
}

// truncateDualScript keeps only the leading target-script part of strings such
// as "约翰 John": the cut happens at the first non-target letter that follows
// target-script text.
func (n *Normalizer) truncateDualScript(s string) string {
	seenTarget := false
	for i, r := range s {
		if n.isTargetRune(r) {
			seenTarget = true
			continue
		}
		if seenTarget && unicode.IsLetter(r) {
			if head := trimSeparators(s[:i]); head != "" {
				return head
			}
			return s
		}
	}
	return s
}

func cutPrefixFold(s, prefix string) (string, bool) {
	pr := []rune(prefix)
	sr := []rune(s)
	if len(sr) < len(pr) {
		return s, false
	}
	if !strings.EqualFold(string(sr[:len(pr)]), prefix) {
		return s, false
	}
	return string(sr[len(pr):]), true
}

func cutSuffixFold(s, suffix string) (string, bool) {
	sx := []rune(suffix)
	sr := []rune(s)
	if len(sr) < len(sx) {
		return s, false
	}
	if !strings.EqualFold(string(sr[len(sr)-len(sx):]), suffix) {
		return s, false
	}
	return string(sr[:len(sr)-len(sx)]), true
}

func isSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case ':', '：', ',', '，', '、', '-', '–', '—', '/', '|', ';', '；':
		return true
	}
	return false
}

func startsWithSeparator(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		return isSeparator(r)
	}
	return false
}

func endsWithSeparator(s string) bool {
	r := []rune(s)
	return len(r) > 0 && isSeparator(r[len(r)-1])
}

func trimSeparators(s string) string {
	return strings.TrimFunc(s, isSeparator)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
