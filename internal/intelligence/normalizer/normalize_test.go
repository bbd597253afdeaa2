package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// testSpec is the reference set shared by the package tests.
func testSpec() *biomarker.Specification {
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

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Hemoglobina":                "hemoglobina",
		"  Hemoglobina   Glicada! ":  "hemoglobina glicada",
		"Sódio":                      "sodio",
		"HbA1c (%)":                  "hba1c",
		"T4-Livre":                   "t4livre",
		"Ácido\tÚrico\n":             "acido urico",
		"vitamina_d":                 "vitamina_d",
		"":                           "",
		"   ":                        "",
		"!!!":                        "",
		"Proteína C Reativa (PCR)":   "proteina c reativa pcr",
		"Fósforo , Inorgânico":       "fosforo inorganico",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, s := range []string{"Cálcio Iônico", "  LDL-C ", "Vitamina D (25-OH)"} {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestNormalize_KeepsNonLatinLetters(t *testing.T) {
	assert.Equal(t, "β2 microglobulina", Normalize("β2 Microglobulina"))
	assert.Equal(t, "µgdl", Normalize("µg/dL"))
	assert.Equal(t, "straße", Normalize("Straße"))
}

func TestFold_KeepsPunctuation(t *testing.T) {
	assert.Equal(t, "perfil lipidico", Fold("  PERFIL LIPÍDICO "))
	assert.Equal(t, "lp(a)", Fold("Lp(a)"))
	assert.Equal(t, "hs-crp", Fold("HS-CRP"))
}
