// Package similarity scores how closely two media titles match. It backs the
// Jellyseerr search-result matcher, where AI-suggested titles rarely agree
// byte-for-byte with catalog names ("Dune Part Two" vs "Dune: Part Two").
package similarity

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// Normalize lowercases a title, romanizes accented characters, maps "&" to
// "and" and strips punctuation so comparisons survive catalog formatting
// differences.
func Normalize(s string) string {
	s = unidecode.Unidecode(s)
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-' || r == '_' || r == ':':
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Score returns a similarity between 0.0 and 1.0 for two raw titles using
// Levenshtein distance over their normalized forms. One title being a
// substantial suffix of the other ("Claymation Christmas" vs "Will Vinton's
// Claymation Christmas") also counts as a strong match.
func Score(a, b string) float64 {
	a = Normalize(a)
	b = Normalize(b)

	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	if score := suffixScore(a, b); score > 0 {
		return score
	}

	distance := levenshtein(a, b)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}

	return 1.0 - float64(distance)/float64(longest)
}

// Contains reports whether one normalized title contains the other.
func Contains(a, b string) bool {
	a = Normalize(a)
	b = Normalize(b)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func suffixScore(a, b string) float64 {
	longer, shorter := a, b
	if len(a) < len(b) {
		longer, shorter = b, a
	}

	if !strings.HasSuffix(longer, shorter) {
		return 0
	}

	// The suffix must begin at a word boundary and cover most of the title.
	prefixLen := len(longer) - len(shorter)
	if prefixLen > 0 && longer[prefixLen-1] != ' ' {
		return 0
	}

	ratio := float64(len(shorter)) / float64(len(longer))
	if ratio < 0.6 {
		return 0
	}

	return 0.90 + ratio*0.10
}

func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minOf(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func minOf(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
