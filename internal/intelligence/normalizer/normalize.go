// Package normalizer resolves free-text laboratory biomarker labels to
// canonical biomarkers and validates exam submissions.
//
// Resolution runs three tiers in order: exact standard name, synonym, then
// fuzzy similarity.  Ambiguous fuzzy results are rejected rather than guessed.
// The Engine is immutable after construction; the Classifier carries the only
// mutable state, a bounded LRU of category answers.
package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes s and drops combining marks.
func stripDiacritics(s string) string {
	// transform.Chain keeps state, so a fresh chain is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize produces the comparison key for a biomarker label: lower case,
// no diacritics, only letters, digits, underscores and single spaces.
// Letters are Unicode letters, not just ASCII, so labels such as
// "β2 microglobulina" or "µg" keep their non-Latin letters; accented Latin
// letters are already plain ASCII after diacritic removal.
func Normalize(text string) string {
	folded := stripDiacritics(strings.ToLower(text))

	var sb strings.Builder
	sb.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if pendingSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			pendingSpace = false
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return sb.String()
}

// Fold lower-cases, strips diacritics and trims, keeping punctuation.  It keys
// the static normalization table and the category alias map.
func Fold(text string) string {
	return strings.TrimSpace(stripDiacritics(strings.ToLower(text)))
}
