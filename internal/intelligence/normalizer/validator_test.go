package normalizer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

func entry(name string, v biomarker.Value) biomarker.Entry {
	return biomarker.Entry{Name: name, Value: v}
}

func TestValidate_AllResolved(t *testing.T) {
	e := newTestEngine(t)

	res := e.Validate(biomarker.Payload{
		ExamDate: "2024-03-01",
		Entries: []biomarker.Entry{
			entry("Hemoglobina", biomarker.NumberValue(13.5)),
			entry("CT", biomarker.NumberValue(180)),
			entry("Creatinnina", biomarker.StringValue("0,9")),
		},
	})

	assert.True(t, res.Success)
	assert.Empty(t, res.RejectedBiomarkers)
	assert.Empty(t, res.Duplicates)
	assert.Equal(t, biomarker.ValidationStats{
		Total: 3, Processed: 3, ExactMatches: 1, SynonymMatches: 1, FuzzyMatches: 1,
	}, res.Stats)
}

func TestValidate_InputRules(t *testing.T) {
	e := newTestEngine(t)
	long := strings.Repeat("a", 151)

	cases := []struct {
		name   string
		entry  biomarker.Entry
		reason string
	}{
		{"empty name", entry("", biomarker.NumberValue(1)), "empty name"},
		{"blank name", entry("   ", biomarker.NumberValue(1)), "empty name"},
		{"short name", entry(" a ", biomarker.NumberValue(1)), "name too short (minimum 2 characters)"},
		{"long name", entry(long, biomarker.NumberValue(1)), "name too long (maximum 150 characters)"},
		{"unset value", entry("Glicose", biomarker.Value{}), "invalid value: empty value"},
		{"empty string value", entry("Glicose", biomarker.StringValue("")), "invalid value: empty value"},
		{"blank string value", entry("Glicose", biomarker.StringValue("  ")), "invalid value: empty value"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := e.Validate(biomarker.Payload{Entries: []biomarker.Entry{tc.entry}})
			require.Len(t, res.RejectedBiomarkers, 1)
			rej := res.RejectedBiomarkers[0]
			assert.Equal(t, tc.reason, rej.Reason)
			assert.Equal(t, tc.entry.Name, rej.OriginalName)
			assert.Empty(t, rej.Suggestions)
			assert.False(t, res.Success)
		})
	}
}

func TestValidate_UnsupportedValueType(t *testing.T) {
	e := newTestEngine(t)

	var p biomarker.Payload
	require.NoError(t, p.UnmarshalJSON([]byte(`{"entries": [{"name": "Glicose", "value": true}]}`)))

	res := e.Validate(p)
	require.Len(t, res.RejectedBiomarkers, 1)
	assert.Equal(t, "invalid value: unsupported value type", res.RejectedBiomarkers[0].Reason)
}

func TestValidate_ZeroIsAValue(t *testing.T) {
	e := newTestEngine(t)
	res := e.Validate(biomarker.Payload{Entries: []biomarker.Entry{entry("Glicose", biomarker.NumberValue(0))}})
	assert.True(t, res.Success)
}

func TestValidate_KeepsGoingAfterFailures(t *testing.T) {
	e := newTestEngine(t)

	res := e.Validate(biomarker.Payload{Entries: []biomarker.Entry{
		entry("", biomarker.NumberValue(1)),
		entry("Vitamina B", biomarker.NumberValue(1)),
		entry("Sódio", biomarker.NumberValue(140)),
		entry("xyzxyz", biomarker.NumberValue(1)),
	}})

	assert.False(t, res.Success)
	assert.Equal(t, 4, res.Stats.Total)
	assert.Equal(t, 1, res.Stats.Processed)
	assert.Equal(t, 3, res.Stats.Rejected)
	assert.Equal(t, "Sódio", res.ProcessedBiomarkers[0].NormalizedName)
	assert.Equal(t, ReasonAmbiguous, res.RejectedBiomarkers[1].Reason)
}

func TestValidate_DuplicateFlagsReview(t *testing.T) {
	e := newTestEngine(t)

	res := e.Validate(biomarker.Payload{
		ExamDate: "2024-03-01",
		ExamID:   "exam-7",
		Entries: []biomarker.Entry{
			entry("glicose", biomarker.NumberValue(92)),
			entry("glicemia", biomarker.NumberValue(95)),
			entry("Hb", biomarker.NumberValue(14)),
		},
	})

	assert.False(t, res.Success)
	assert.Empty(t, res.RejectedBiomarkers)
	require.Len(t, res.Duplicates, 1)
	d := res.Duplicates[0]
	assert.Equal(t, "Glicose", d.BiomarkerName)
	assert.Equal(t, biomarker.ConflictMultipleEntries, d.ConflictType)
	assert.True(t, d.RequiresManualReview)
	assert.Equal(t, []biomarker.ConflictValue{
		{Value: "glicose", Date: "2024-03-01", ExamID: "exam-7"},
		{Value: "glicemia", Date: "2024-03-01", ExamID: "exam-7"},
	}, d.Values)
}

func TestValidate_DuplicateDateDefaultsToNow(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	e := newTestEngine(t, WithClock(func() time.Time { return fixed }))

	res := e.Validate(biomarker.Payload{Entries: []biomarker.Entry{
		entry("Glicose", biomarker.NumberValue(1)),
		entry("glucose", biomarker.NumberValue(2)),
	}})
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, "2025-01-02T03:04:05Z", res.Duplicates[0].Values[0].Date)
}

func TestValidate_EmptyPayload(t *testing.T) {
	e := newTestEngine(t)
	res := e.Validate(biomarker.Payload{})
	assert.True(t, res.Success)
	assert.NotNil(t, res.ProcessedBiomarkers)
	assert.NotNil(t, res.RejectedBiomarkers)
	assert.NotNil(t, res.Duplicates)
}

func TestDetectDuplicates(t *testing.T) {
	matches := []biomarker.MatchResult{
		{OriginalName: "CT", NormalizedName: "Colesterol Total"},
		{OriginalName: "hb", NormalizedName: "Hemoglobina"},
		{OriginalName: "Hemoglobina", NormalizedName: "Hemoglobina"},
		{OriginalName: "colesterol total", NormalizedName: "Colesterol Total"},
		{OriginalName: "HGB", NormalizedName: "Hemoglobina"},
		{OriginalName: "Sódio", NormalizedName: "Sódio"},
	}

	got := DetectDuplicates(matches, "2024-01-01", "")
	require.Len(t, got, 2)
	assert.Equal(t, "Colesterol Total", got[0].BiomarkerName)
	assert.Len(t, got[0].Values, 2)
	assert.Equal(t, "Hemoglobina", got[1].BiomarkerName)
	assert.Len(t, got[1].Values, 3)
	assert.Equal(t, "HGB", got[1].Values[2].Value)

	assert.Empty(t, DetectDuplicates(nil, "2024-01-01", ""))
}

func TestReasonClass(t *testing.T) {
	e := newTestEngine(t)
	cases := map[string]string{
		ReasonEmptyName:            "empty_name",
		ReasonEmptyValue:           "empty_value",
		ReasonUnsupportedType:      "unsupported_type",
		ReasonNotRecognized:        "not_recognized",
		ReasonAmbiguous:            "ambiguous",
		e.CheckName("x"):           "name_length",
		e.insufficientReason:       "insufficient_similarity",
		"something nobody expects": "other",
	}
	for reason, want := range cases {
		assert.Equal(t, want, ReasonClass(reason), reason)
	}
}
