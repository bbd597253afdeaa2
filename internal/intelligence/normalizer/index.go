package normalizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/biomarker-engine/pkg/errors"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// indexedBiomarker is a canonical entry plus its normalized keys.
type indexedBiomarker struct {
	canonical biomarker.CanonicalBiomarker
	nameKey   string
	keys      []string // nameKey first, then distinct synonym keys
}

// ReferenceIndex maps normalized keys to canonical biomarkers.  It is
// read-only after construction and safe for concurrent use.
type ReferenceIndex struct {
	entries []*indexedBiomarker
	exact   map[string]*indexedBiomarker
	synonym map[string]*indexedBiomarker
}

// NewReferenceIndex builds the exact and synonym maps.  Any key claimed by two
// different canonical entries is a reference-integrity error; every collision
// is reported in the error detail.
func NewReferenceIndex(spec *biomarker.Specification) (*ReferenceIndex, error) {
	if spec == nil || len(spec.Biomarkers) == 0 {
		return nil, errors.New(errors.ErrCodeSpecificationEmpty, "reference specification has no biomarkers")
	}

	idx := &ReferenceIndex{
		entries: make([]*indexedBiomarker, 0, len(spec.Biomarkers)),
		exact:   make(map[string]*indexedBiomarker, len(spec.Biomarkers)),
		synonym: make(map[string]*indexedBiomarker, len(spec.Biomarkers)*4),
	}

	var problems []string
	for i := range spec.Biomarkers {
		src := spec.Biomarkers[i]
		nameKey := Normalize(src.StandardName)
		if nameKey == "" {
			problems = append(problems, fmt.Sprintf("entry #%d has an empty standard name", i))
			continue
		}

		entry := &indexedBiomarker{
			canonical: biomarker.CanonicalBiomarker{
				StandardName: src.StandardName,
				Category:     src.Category,
				Unit:         src.Unit,
				Synonyms:     append([]string(nil), src.Synonyms...),
			},
			nameKey: nameKey,
			keys:    []string{nameKey},
		}

		if owner, taken := idx.exact[nameKey]; taken {
			problems = append(problems, collision(nameKey, owner, entry))
			continue
		}
		if owner, taken := idx.synonym[nameKey]; taken {
			problems = append(problems, collision(nameKey, owner, entry))
			continue
		}
		idx.exact[nameKey] = entry
		idx.synonym[nameKey] = entry

		for _, syn := range src.Synonyms {
			key := Normalize(syn)
			if key == "" {
				continue
			}
			if owner, taken := idx.synonym[key]; taken {
				if owner != entry {
					problems = append(problems, collision(key, owner, entry))
				}
				continue
			}
			idx.synonym[key] = entry
			entry.keys = append(entry.keys, key)
		}
		idx.entries = append(idx.entries, entry)
	}

	if len(problems) > 0 {
		return nil, errors.Newf(errors.ErrCodeReferenceIntegrity,
			"reference specification has %d conflicting key(s)", len(problems)).
			WithDetail(strings.Join(problems, "; "))
	}
	return idx, nil
}

func collision(key string, owner, claimant *indexedBiomarker) string {
	return fmt.Sprintf("key %q claimed by %q and %q", key, owner.canonical.StandardName, claimant.canonical.StandardName)
}

// LookupExact returns the biomarker whose normalized standard name is key.
func (x *ReferenceIndex) LookupExact(key string) (*biomarker.CanonicalBiomarker, bool) {
	e, ok := x.exact[key]
	if !ok {
		return nil, false
	}
	return &e.canonical, true
}

// LookupSynonym returns the biomarker owning key as standard name or synonym.
func (x *ReferenceIndex) LookupSynonym(key string) (*biomarker.CanonicalBiomarker, bool) {
	e, ok := x.synonym[key]
	if !ok {
		return nil, false
	}
	return &e.canonical, true
}

// Len returns the number of canonical biomarkers.
func (x *ReferenceIndex) Len() int { return len(x.entries) }

// KeyCount returns the number of distinct synonym-map keys.
func (x *ReferenceIndex) KeyCount() int { return len(x.synonym) }

// Categories returns the distinct raw categories, sorted.
func (x *ReferenceIndex) Categories() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range x.entries {
		if _, ok := seen[e.canonical.Category]; ok {
			continue
		}
		seen[e.canonical.Category] = struct{}{}
		out = append(out, e.canonical.Category)
	}
	sort.Strings(out)
	return out
}
