package normalizer

import (
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// DetectDuplicates groups matches by canonical name and reports every group
// with more than one member, in first-seen order.  Each conflict value carries
// the member's original name, date and examID.
func DetectDuplicates(matches []biomarker.MatchResult, date, examID string) []biomarker.DuplicateConflict {
	groups := make(map[string][]int, len(matches))
	order := make([]string, 0, len(matches))
	for i, m := range matches {
		if _, seen := groups[m.NormalizedName]; !seen {
			order = append(order, m.NormalizedName)
		}
		groups[m.NormalizedName] = append(groups[m.NormalizedName], i)
	}

	out := make([]biomarker.DuplicateConflict, 0)
	for _, name := range order {
		members := groups[name]
		if len(members) < 2 {
			continue
		}
		values := make([]biomarker.ConflictValue, 0, len(members))
		for _, i := range members {
			values = append(values, biomarker.ConflictValue{
				Value:  matches[i].OriginalName,
				Date:   date,
				ExamID: examID,
			})
		}
		out = append(out, biomarker.DuplicateConflict{
			BiomarkerName:        name,
			ConflictType:         biomarker.ConflictMultipleEntries,
			Values:               values,
			RequiresManualReview: true,
		})
	}
	return out
}
