package integration

import (
	"sort"
	"strings"

	"github.com/pankbase/functional/internal/domain/cohort"
)

const reportSampleLimit = 20

// ValidationStats summarises a pre-check of external data.
type ValidationStats struct {
	TotalProvided      int      `json:"total_provided"`
	MatchingDonors     int      `json:"matching_donors"`
	UnmatchedDonors    int      `json:"unmatched_donors"`
	Variables          []string `json:"variables"`
	InconsistentDonors int      `json:"inconsistent_donors"`
	NonNumericValues   int      `json:"non_numeric_values"`
}

// ValidationReport is the result of checking external data against the
// loaded cohort. Id lists are truncated to the first 20 in sorted order.
type ValidationReport struct {
	Valid             bool            `json:"valid"`
	Statistics        ValidationStats `json:"statistics"`
	UnmatchedRRIDs    []string        `json:"unmatched_rrids"`
	InconsistentRRIDs []string        `json:"inconsistent_rrids"`
}

// ValidateData checks that every donor id resolves against f and that every
// donor carries the same variable set. Values that are neither numbers nor
// null are counted as non-numeric and make the data invalid.
func ValidateData(f *cohort.Frame, data map[string]map[string]any) *ValidationReport {
	ids := make([]string, 0, len(data))
	vars := make(map[string]struct{})
	for id, row := range data {
		ids = append(ids, id)
		for name := range row {
			vars[name] = struct{}{}
		}
	}
	sort.Strings(ids)

	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)

	rep := &ValidationReport{
		Statistics:        ValidationStats{TotalProvided: len(ids), Variables: names},
		UnmatchedRRIDs:    []string{},
		InconsistentRRIDs: []string{},
	}
	var unmatched, inconsistent []string
	for _, id := range ids {
		row := data[id]
		if _, ok := f.Row(strings.TrimSpace(id)); ok {
			rep.Statistics.MatchingDonors++
		} else {
			unmatched = append(unmatched, id)
		}
		if len(row) != len(names) {
			inconsistent = append(inconsistent, id)
		}
		for _, v := range row {
			switch v.(type) {
			case float64, nil:
			default:
				rep.Statistics.NonNumericValues++
			}
		}
	}

	rep.Statistics.UnmatchedDonors = len(unmatched)
	rep.Statistics.InconsistentDonors = len(inconsistent)
	rep.UnmatchedRRIDs = append(rep.UnmatchedRRIDs, truncate(unmatched)...)
	rep.InconsistentRRIDs = append(rep.InconsistentRRIDs, truncate(inconsistent)...)
	rep.Valid = len(unmatched) == 0 && len(inconsistent) == 0 && rep.Statistics.NonNumericValues == 0
	return rep
}

func truncate(ids []string) []string {
	if len(ids) > reportSampleLimit {
		return ids[:reportSampleLimit]
	}
	return ids
}
