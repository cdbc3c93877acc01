package tmdb

import "castsync/internal/textnorm"

// minTokenSimilarity accepts reordered or partially romanized names
// ("Chow Yun-fat" vs "Yun-Fat Chow").
const minTokenSimilarity = 0.8

func namesAgree(candidate, expected []string) bool {
	for _, a := range candidate {
		for _, b := range expected {
			if key := textnorm.NameKey(a); key != "" && key == textnorm.NameKey(b) {
				return true
			}
			if textnorm.NearlyEqual(a, b) || textnorm.TokenSimilarity(a, b) >= minTokenSimilarity {
				return true
			}
		}
	}
	return false
}
