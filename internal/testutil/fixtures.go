package testutil

import "github.com/turtacn/biomarker-engine/pkg/types/biomarker"

// SampleSpecification returns a small reference set covering every category
// tier: exact and synonym hits, near-identical names for ambiguity, and a
// long section heading as category.
func SampleSpecification() *biomarker.Specification {
	return &biomarker.Specification{
		Version:   "2.0",
		UpdatedAt: "2024-06-01",
		Biomarkers: []biomarker.CanonicalBiomarker{
			{StandardName: "Hemoglobina", Category: "hematologico", Unit: "g/dL", Synonyms: []string{"Hb", "HGB"}},
			{StandardName: "Glicose", Category: "metabolico", Unit: "mg/dL", Synonyms: []string{"glicemia", "glucose"}},
			{StandardName: "Colesterol Total", Category: "metabolico", Unit: "mg/dL", Synonyms: []string{"CT"}},
			{StandardName: "Creatinina", Category: "renal", Unit: "mg/dL", Synonyms: []string{"creat"}},
			{StandardName: "Sódio", Category: "ions", Unit: "mEq/L", Synonyms: []string{"Na"}},
			{StandardName: "Vitamina B1", Category: "vitaminas_minerais", Unit: "nmol/L", Synonyms: []string{"tiamina"}},
			{StandardName: "Vitamina B2", Category: "vitaminas_minerais", Unit: "nmol/L", Synonyms: []string{"riboflavina"}},
			{StandardName: "Marcador Experimental", Category: "FUNÇÃO RENAL", Unit: "U/L"},
		},
	}
}

// SamplePayload returns a submission against SampleSpecification with one
// exact match, one synonym, one fuzzy match, one unknown name and one
// empty value.
func SamplePayload() biomarker.Payload {
	return biomarker.Payload{
		ExamID:   "exam-001",
		ExamDate: "2024-06-10",
		Entries: []biomarker.Entry{
			{Name: "Hemoglobina", Value: biomarker.NumberValue(13.5), Unit: "g/dL"},
			{Name: "glicemia", Value: biomarker.NumberValue(92), Unit: "mg/dL"},
			{Name: "Creatinia", Value: biomarker.StringValue("0.9"), Unit: "mg/dL"},
			{Name: "Xyzzy Marker", Value: biomarker.NumberValue(1)},
			{Name: "Sódio", Value: biomarker.StringValue("  ")},
		},
	}
}
