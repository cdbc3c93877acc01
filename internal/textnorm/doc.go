// Package textnorm turns noisy cast names and character strings into
// comparable canonical forms.
//
// CleanRole strips bracketed annotations, "as"/"voiced by" style role
// markers, and the foreign half of dual-language strings. NameKey is the
// width- and case-folded key used for exact matching; FuzzyKey additionally
// drops accents, punctuation, and spacing for last-resort matching and is never
// shown to users. Every function is pure and total: empty or malformed input
// yields an empty result rather than an error.
package textnorm
