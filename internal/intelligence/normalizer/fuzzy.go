package normalizer

import (
	"sort"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// Candidate is a fuzzy search hit.
type Candidate struct {
	Biomarker  *biomarker.CanonicalBiomarker
	Score      float64
	MatchedKey string
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)), counted in runes.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// FuzzyMatcher ranks canonical biomarkers by similarity to a normalized query.
// Each biomarker scores the best similarity over its standard name and
// synonyms.  It only ranks; acceptance is the caller's decision.
type FuzzyMatcher struct {
	entries        []*indexedBiomarker
	threshold      float64
	minQueryLength int
}

// NewFuzzyMatcher indexes every key of idx.
func NewFuzzyMatcher(idx *ReferenceIndex, threshold float64, minQueryLength int) *FuzzyMatcher {
	return &FuzzyMatcher{
		entries:        idx.entries,
		threshold:      threshold,
		minQueryLength: minQueryLength,
	}
}

// Search returns biomarkers scoring at least the candidate threshold, best
// first.  Queries shorter than the minimum length return nothing.
func (m *FuzzyMatcher) Search(query string) []Candidate {
	if utf8.RuneCountInString(query) < m.minQueryLength {
		return nil
	}
	return m.rank(query, m.threshold, 0)
}

// SearchRelaxed returns up to limit biomarkers with any positive similarity,
// best first, ignoring the candidate threshold.
func (m *FuzzyMatcher) SearchRelaxed(query string, limit int) []Candidate {
	if query == "" || limit <= 0 {
		return nil
	}
	return m.rank(query, 0, limit)
}

func (m *FuzzyMatcher) rank(query string, floor float64, limit int) []Candidate {
	var out []Candidate
	for _, e := range m.entries {
		best, bestKey := 0.0, ""
		for _, key := range e.keys {
			if s := Similarity(query, key); s > best {
				best, bestKey = s, key
			}
		}
		if best <= 0 || best < floor {
			continue
		}
		out = append(out, Candidate{Biomarker: &e.canonical, Score: best, MatchedKey: bestKey})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Biomarker.StandardName < out[j].Biomarker.StandardName
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// names extracts standard names of the first n candidates.
func names(cands []Candidate, n int) []string {
	if n > len(cands) {
		n = len(cands)
	}
	out := make([]string, 0, n)
	for _, c := range cands[:n] {
		out = append(out, c.Biomarker.StandardName)
	}
	return out
}
