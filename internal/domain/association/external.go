package association

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pankbase/functional/internal/domain/cohort"
)

// ExternalData maps donor id to variable name to value. Ids may be RRIDs or
// accessions.
type ExternalData map[string]map[string]float64

// Variables returns the sorted union of variable names.
func (d ExternalData) Variables() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, vars := range d {
		for name := range vars {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// UnknownDonorIDWarning lists supplied donor ids that match no donor. Those
// ids contribute no rows.
type UnknownDonorIDWarning struct {
	IDs []string
}

func (w *UnknownDonorIDWarning) Error() string {
	return fmt.Sprintf("%d unknown donor id(s): %s", len(w.IDs), strings.Join(w.IDs, ", "))
}

// Warning is the wire form of a non-fatal condition.
type Warning struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Values  []string `json:"values,omitempty"`
}

const (
	WarnUnknownDonorIDs = "unknown_donor_ids"
	WarnShadowedColumns = "shadowed_columns"
)

// Merged is a request-scoped frame carrying external columns.
type Merged struct {
	Frame     *cohort.Frame
	Variables []string
	Matched   int
	Unknown   *UnknownDonorIDWarning
	Shadowed  []string
}

// Warnings returns the merge warnings in wire form.
func (m *Merged) Warnings() []Warning {
	var out []Warning
	if m.Unknown != nil {
		out = append(out, Warning{Kind: WarnUnknownDonorIDs, Message: m.Unknown.Error(), Values: m.Unknown.IDs})
	}
	if len(m.Shadowed) > 0 {
		out = append(out, Warning{
			Kind:    WarnShadowedColumns,
			Message: "external variables replace dataset columns for this request",
			Values:  m.Shadowed,
		})
	}
	return out
}

// Merge left-joins data onto f as numerical external columns. f is never
// modified. When two supplied ids resolve to the same donor, the value under
// the lexically first id wins.
func Merge(f *cohort.Frame, data ExternalData) *Merged {
	names := data.Variables()
	cells := make(map[string][]cohort.Cell, len(names))
	for _, n := range names {
		cells[n] = make([]cohort.Cell, f.Len())
	}

	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	m := &Merged{Variables: names}
	matched := make(map[int]bool)
	var unknown []string
	for _, id := range ids {
		row, ok := f.Row(strings.TrimSpace(id))
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		first := !matched[row]
		matched[row] = true
		for name, v := range data[id] {
			if math.IsNaN(v) || math.IsInf(v, 0) || v == cohort.MissingSentinel {
				continue
			}
			if col := cells[name]; first || !col[row].Valid {
				col[row] = cohort.NumberCell(v)
			}
		}
	}
	m.Matched = len(matched)
	if len(unknown) > 0 {
		m.Unknown = &UnknownDonorIDWarning{IDs: unknown}
	}

	cols := make([]*cohort.Column, len(names))
	for i, n := range names {
		cols[i] = &cohort.Column{Name: n, Source: cohort.SourceExternal, Kind: cohort.KindNumerical, Cells: cells[n]}
	}
	m.Frame, m.Shadowed = f.WithColumns(cols...)
	return m
}
