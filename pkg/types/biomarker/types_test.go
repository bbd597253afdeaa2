package biomarker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecification_DecodesEnglishKeys(t *testing.T) {
	raw := `{
		"version": "2.1",
		"updated_at": "2024-05-01",
		"biomarkers": [
			{"standard_name": "Hemoglobina", "category": "hematologico", "unit": "g/dL", "synonyms": ["Hb", "HGB"]}
		]
	}`

	var spec Specification
	require.NoError(t, json.Unmarshal([]byte(raw), &spec))
	assert.Equal(t, "2.1", spec.Version)
	require.Len(t, spec.Biomarkers, 1)
	assert.Equal(t, CanonicalBiomarker{
		StandardName: "Hemoglobina",
		Category:     "hematologico",
		Unit:         "g/dL",
		Synonyms:     []string{"Hb", "HGB"},
	}, spec.Biomarkers[0])
}

func TestSpecification_DecodesPortugueseKeys(t *testing.T) {
	raw := `{
		"versao": "3.0",
		"data_atualizacao": "2024-10-01",
		"categorias": [{"nome": "PERFIL LIPÍDICO", "ordem": 2}],
		"biomarcadores": [
			{"nome_padrao": "Colesterol Total", "categoria": "PERFIL LIPÍDICO", "unidade": "mg/dL",
			 "sinonimos": ["CT", "Colesterol"], "formato_referencia": "< 190"}
		]
	}`

	var spec Specification
	require.NoError(t, json.Unmarshal([]byte(raw), &spec))
	assert.Equal(t, "3.0", spec.Version)
	assert.Equal(t, "2024-10-01", spec.UpdatedAt)
	assert.Equal(t, []CategoryInfo{{Name: "PERFIL LIPÍDICO", Order: 2}}, spec.Categories)
	require.Len(t, spec.Biomarkers, 1)
	assert.Equal(t, "Colesterol Total", spec.Biomarkers[0].StandardName)
	assert.Equal(t, []string{"CT", "Colesterol"}, spec.Biomarkers[0].Synonyms)
}

func TestSpecification_RejectsWrongShape(t *testing.T) {
	var spec Specification
	assert.Error(t, json.Unmarshal([]byte(`{"biomarkers": {"not": "a list"}}`), &spec))
	assert.Error(t, json.Unmarshal([]byte(`[]`), &spec))
}

func TestPayload_DecodesBothKeySets(t *testing.T) {
	english := `{"entries": [{"name": "Hb", "value": 13.5, "unit": "g/dL"}], "exam_date": "2024-03-01", "exam_id": "ex-1"}`
	portuguese := `{"biomarcadores": [{"nome": "Hb", "valor": 13.5, "unidade": "g/dL"}], "data_exame": "2024-03-01"}`

	var a, b Payload
	require.NoError(t, json.Unmarshal([]byte(english), &a))
	require.NoError(t, json.Unmarshal([]byte(portuguese), &b))

	assert.Equal(t, "ex-1", a.ExamID)
	assert.Equal(t, a.ExamDate, b.ExamDate)
	require.Len(t, b.Entries, 1)
	assert.Equal(t, a.Entries[0], b.Entries[0])
	assert.Equal(t, ValueNumber, b.Entries[0].Value.Kind())
	assert.Equal(t, 13.5, b.Entries[0].Value.Number())
}

func TestEntry_NullFields(t *testing.T) {
	var e Entry
	require.NoError(t, json.Unmarshal([]byte(`{"name": null, "value": null}`), &e))
	assert.Equal(t, "", e.Name)
	assert.Equal(t, ValueUnset, e.Value.Kind())

	require.NoError(t, json.Unmarshal([]byte(`{"name": "Hb"}`), &e))
	assert.Equal(t, ValueUnset, e.Value.Kind())
}

func TestValue_Variants(t *testing.T) {
	cases := []struct {
		raw   string
		kind  ValueKind
		text  string
		blank bool
	}{
		{`"positivo"`, ValueString, "positivo", false},
		{`""`, ValueString, "", true},
		{`"   "`, ValueString, "   ", true},
		{`12.5`, ValueNumber, "12.5", false},
		{`-3`, ValueNumber, "-3", false},
		{`0`, ValueNumber, "0", false},
		{`null`, ValueUnset, "", true},
		{`true`, ValueInvalid, "", false},
		{`{"a": 1}`, ValueInvalid, "", false},
		{`[1, 2]`, ValueInvalid, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			var v Value
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &v))
			assert.Equal(t, tc.kind, v.Kind())
			assert.Equal(t, tc.text, v.Text())
			assert.Equal(t, tc.blank, v.IsBlank())
		})
	}
}

func TestValue_MarshalKeepsVariant(t *testing.T) {
	out, err := json.Marshal([]Value{StringValue("< 0,5"), NumberValue(7), {}})
	require.NoError(t, err)
	assert.JSONEq(t, `["< 0,5", 7, null]`, string(out))
}

func TestValueKind_String(t *testing.T) {
	assert.Equal(t, "string", ValueString.String())
	assert.Equal(t, "number", ValueNumber.String())
	assert.Equal(t, "invalid", ValueInvalid.String())
	assert.Equal(t, "unset", ValueUnset.String())
}

func TestValidationResult_RequiresReview(t *testing.T) {
	r := ValidationResult{}
	assert.False(t, r.RequiresReview())

	r.Duplicates = []DuplicateConflict{{BiomarkerName: "Glicose", RequiresManualReview: true}}
	assert.True(t, r.RequiresReview())
}
