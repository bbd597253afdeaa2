// Package biomarker holds the data types exchanged with the normalization
// engine: the reference specification, submissions, and validation results.
// JSON field names are the snake_case English names; the Portuguese names used
// by the original laboratory data files are accepted on input as aliases.
package biomarker

import (
	"encoding/json"
)

// MatchType records which resolution tier produced a match.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchSynonym MatchType = "synonym"
	MatchFuzzy   MatchType = "fuzzy"
)

// Fixed confidences for the non-fuzzy tiers.
const (
	ExactConfidence   = 1.0
	SynonymConfidence = 0.95
)

// ConflictMultipleEntries is the conflict_type of every within-submission duplicate.
const ConflictMultipleEntries = "multiple entries detected"

// CategoryOther is the category of anything that cannot be classified.
const CategoryOther = "outros"

// CategorySource tells where GetCategoryWithSource found its answer.
type CategorySource string

const (
	SourceOverride           CategorySource = "override"
	SourceNormalizationTable CategorySource = "normalization_table"
	SourceDatabase           CategorySource = "database"
	SourceHeuristic          CategorySource = "heuristic"
)

// CanonicalBiomarker is one authoritative biomarker identity.
type CanonicalBiomarker struct {
	StandardName string   `json:"standard_name"`
	Category     string   `json:"category"`
	Unit         string   `json:"unit"`
	Synonyms     []string `json:"synonyms"`
}

// UnmarshalJSON accepts both English and Portuguese keys.
func (c *CanonicalBiomarker) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	var out CanonicalBiomarker
	if err := pickInto(fields, &out.StandardName, "standard_name", "nome_padrao"); err != nil {
		return err
	}
	if err := pickInto(fields, &out.Category, "category", "categoria"); err != nil {
		return err
	}
	if err := pickInto(fields, &out.Unit, "unit", "unidade"); err != nil {
		return err
	}
	if err := pickInto(fields, &out.Synonyms, "synonyms", "sinonimos"); err != nil {
		return err
	}
	*c = out
	return nil
}

// CategoryInfo is an optional category heading with its display order.
type CategoryInfo struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// UnmarshalJSON accepts both English and Portuguese keys.
func (c *CategoryInfo) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	var out CategoryInfo
	if err := pickInto(fields, &out.Name, "name", "nome"); err != nil {
		return err
	}
	if err := pickInto(fields, &out.Order, "order", "ordem"); err != nil {
		return err
	}
	*c = out
	return nil
}

// Specification is the canonical reference set the engine is built from.
type Specification struct {
	Version     string               `json:"version,omitempty"`
	UpdatedAt   string               `json:"updated_at,omitempty"`
	Description string               `json:"description,omitempty"`
	Categories  []CategoryInfo       `json:"categories,omitempty"`
	Biomarkers  []CanonicalBiomarker `json:"biomarkers"`
}

// UnmarshalJSON accepts both English and Portuguese keys.
func (s *Specification) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	var out Specification
	targets := []struct {
		dst  interface{}
		keys []string
	}{
		{&out.Version, []string{"version", "versao"}},
		{&out.UpdatedAt, []string{"updated_at", "data_atualizacao"}},
		{&out.Description, []string{"description", "descricao"}},
		{&out.Categories, []string{"categories", "categorias"}},
		{&out.Biomarkers, []string{"biomarkers", "biomarcadores"}},
	}
	for _, t := range targets {
		if err := pickInto(fields, t.dst, t.keys...); err != nil {
			return err
		}
	}
	*s = out
	return nil
}

// SpecificationStats summarizes a loaded specification.
type SpecificationStats struct {
	Version         string   `json:"version,omitempty"`
	UpdatedAt       string   `json:"updated_at,omitempty"`
	TotalBiomarkers int      `json:"total_biomarkers"`
	TotalCategories int      `json:"total_categories"`
	TotalSynonyms   int      `json:"total_synonyms"`
	Categories      []string `json:"categories"`
}

// Variation is an admin-entered raw label mapped onto a standard name.
type Variation struct {
	StandardName string `json:"standard_name"`
	Category     string `json:"category,omitempty"`
	Unit         string `json:"unit,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Submissions
// ─────────────────────────────────────────────────────────────────────────────

// Entry is one extracted name/value pair.
type Entry struct {
	Name      string `json:"name"`
	Value     Value  `json:"value"`
	Unit      string `json:"unit,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// UnmarshalJSON accepts both English and Portuguese keys.  A null name
// decodes as the empty string.
func (e *Entry) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	var out Entry
	if err := pickInto(fields, &out.Name, "name", "nome"); err != nil {
		return err
	}
	if err := pickInto(fields, &out.Value, "value", "valor"); err != nil {
		return err
	}
	if err := pickInto(fields, &out.Unit, "unit", "unidade"); err != nil {
		return err
	}
	if err := pickInto(fields, &out.Reference, "reference", "referencia"); err != nil {
		return err
	}
	*e = out
	return nil
}

// Payload is one exam submission.
type Payload struct {
	Entries  []Entry `json:"entries"`
	ExamDate string  `json:"exam_date,omitempty"`
	ExamID   string  `json:"exam_id,omitempty"`
}

// UnmarshalJSON accepts both English and Portuguese keys.
func (p *Payload) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	var out Payload
	if err := pickInto(fields, &out.Entries, "entries", "biomarcadores"); err != nil {
		return err
	}
	if err := pickInto(fields, &out.ExamDate, "exam_date", "data_exame"); err != nil {
		return err
	}
	if err := pickInto(fields, &out.ExamID, "exam_id"); err != nil {
		return err
	}
	*p = out
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Results
// ─────────────────────────────────────────────────────────────────────────────

// MatchResult is a resolved input name.
type MatchResult struct {
	OriginalName   string    `json:"original_name"`
	NormalizedName string    `json:"normalized_name"`
	Category       string    `json:"category"`
	Unit           string    `json:"unit"`
	Synonyms       []string  `json:"synonyms"`
	Confidence     float64   `json:"confidence"`
	MatchType      MatchType `json:"match_type"`
}

// RejectedBiomarker is an input that could not be resolved or failed validation.
type RejectedBiomarker struct {
	OriginalName string   `json:"original_name"`
	Reason       string   `json:"reason"`
	Suggestions  []string `json:"suggestions"`
	Similarity   float64  `json:"similarity"`
}

// ConflictValue is one member of a duplicate group.
type ConflictValue struct {
	Value  string `json:"value"`
	Date   string `json:"date"`
	ExamID string `json:"exam_id,omitempty"`
}

// DuplicateConflict flags several entries of one submission resolving to the
// same canonical biomarker.
type DuplicateConflict struct {
	BiomarkerName        string          `json:"biomarker_name"`
	ConflictType         string          `json:"conflict_type"`
	Values               []ConflictValue `json:"values"`
	RequiresManualReview bool            `json:"requires_manual_review"`
}

// ValidationStats counts outcomes of one submission.
type ValidationStats struct {
	Total          int `json:"total"`
	Processed      int `json:"processed"`
	Rejected       int `json:"rejected"`
	ExactMatches   int `json:"exact_matches"`
	SynonymMatches int `json:"synonym_matches"`
	FuzzyMatches   int `json:"fuzzy_matches"`
}

// ValidationResult is the outcome of validating one submission.
type ValidationResult struct {
	Success             bool                `json:"success"`
	ProcessedBiomarkers []MatchResult       `json:"processed_biomarkers"`
	RejectedBiomarkers  []RejectedBiomarker `json:"rejected_biomarkers"`
	Duplicates          []DuplicateConflict `json:"duplicates"`
	Stats               ValidationStats     `json:"stats"`
}

// RequiresReview reports whether any duplicate group needs a human decision.
func (r *ValidationResult) RequiresReview() bool {
	for _, d := range r.Duplicates {
		if d.RequiresManualReview {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// alias decoding helpers
// ─────────────────────────────────────────────────────────────────────────────

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// pickInto decodes the first present key into dst.  JSON null leaves dst at
// its zero value.
func pickInto(fields map[string]json.RawMessage, dst interface{}, keys ...string) error {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		if string(raw) == "null" {
			if v, isValue := dst.(*Value); isValue {
				*v = Value{}
			}
			return nil
		}
		return json.Unmarshal(raw, dst)
	}
	return nil
}
