package normalizer

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// Input-validation reasons.
const (
	ReasonEmptyName       = "empty name"
	ReasonEmptyValue      = "invalid value: empty value"
	ReasonUnsupportedType = "invalid value: unsupported value type"
)

// CheckName returns the rejection reason for an unusable name, or "".
func (e *Engine) CheckName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ReasonEmptyName
	}
	n := utf8.RuneCountInString(trimmed)
	if n < e.cfg.MinNameLength {
		return fmt.Sprintf("name too short (minimum %d characters)", e.cfg.MinNameLength)
	}
	if n > e.cfg.MaxNameLength {
		return fmt.Sprintf("name too long (maximum %d characters)", e.cfg.MaxNameLength)
	}
	return ""
}

// CheckValue returns the rejection reason for an unusable value, or "".
func CheckValue(v biomarker.Value) string {
	switch v.Kind() {
	case biomarker.ValueInvalid:
		return ReasonUnsupportedType
	case biomarker.ValueUnset:
		return ReasonEmptyValue
	}
	if v.IsBlank() {
		return ReasonEmptyValue
	}
	return ""
}

// ResolveName checks name and resolves it when usable.
func (e *Engine) ResolveName(name string) Resolution {
	if reason := e.CheckName(name); reason != "" {
		return Resolution{Rejection: inputRejection(name, reason)}
	}
	return e.Resolve(name)
}

// Validate resolves every entry of p and reports duplicates.  Input problems
// become rejections; Validate never fails.
func (e *Engine) Validate(p biomarker.Payload) *biomarker.ValidationResult {
	res := &biomarker.ValidationResult{
		ProcessedBiomarkers: make([]biomarker.MatchResult, 0, len(p.Entries)),
		RejectedBiomarkers:  make([]biomarker.RejectedBiomarker, 0),
		Duplicates:          make([]biomarker.DuplicateConflict, 0),
	}
	res.Stats.Total = len(p.Entries)

	for _, entry := range p.Entries {
		reason := e.CheckName(entry.Name)
		if reason == "" {
			reason = CheckValue(entry.Value)
		}
		if reason != "" {
			res.RejectedBiomarkers = append(res.RejectedBiomarkers, *inputRejection(entry.Name, reason))
			continue
		}

		r := e.Resolve(entry.Name)
		if r.Rejection != nil {
			res.RejectedBiomarkers = append(res.RejectedBiomarkers, *r.Rejection)
			continue
		}
		res.ProcessedBiomarkers = append(res.ProcessedBiomarkers, *r.Match)
		switch r.Match.MatchType {
		case biomarker.MatchExact:
			res.Stats.ExactMatches++
		case biomarker.MatchSynonym:
			res.Stats.SynonymMatches++
		case biomarker.MatchFuzzy:
			res.Stats.FuzzyMatches++
		}
	}
	res.Stats.Processed = len(res.ProcessedBiomarkers)
	res.Stats.Rejected = len(res.RejectedBiomarkers)

	date := p.ExamDate
	if date == "" {
		date = e.now().UTC().Format(time.RFC3339)
	}
	res.Duplicates = DetectDuplicates(res.ProcessedBiomarkers, date, p.ExamID)
	res.Success = len(res.RejectedBiomarkers) == 0 && !res.RequiresReview()

	if res.Stats.Rejected > 0 || len(res.Duplicates) > 0 {
		e.logger.Debug("submission validated with findings",
			logging.String("exam_id", p.ExamID),
			logging.Int("total", res.Stats.Total),
			logging.Int("rejected", res.Stats.Rejected),
			logging.Int("duplicates", len(res.Duplicates)))
	}
	return res
}

func inputRejection(name, reason string) *biomarker.RejectedBiomarker {
	return &biomarker.RejectedBiomarker{
		OriginalName: name,
		Reason:       reason,
		Suggestions:  []string{},
	}
}

// ReasonClass maps a rejection reason onto a short, bounded label suitable for
// metrics and logs.
func ReasonClass(reason string) string {
	switch {
	case reason == ReasonEmptyName:
		return "empty_name"
	case reason == ReasonEmptyValue:
		return "empty_value"
	case reason == ReasonUnsupportedType:
		return "unsupported_type"
	case reason == ReasonNotRecognized:
		return "not_recognized"
	case reason == ReasonAmbiguous:
		return "ambiguous"
	case strings.HasPrefix(reason, "name too"):
		return "name_length"
	case strings.HasPrefix(reason, "insufficient similarity"):
		return "insufficient_similarity"
	}
	return "other"
}
