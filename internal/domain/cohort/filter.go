package cohort

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Range is an inclusive numeric bound. Either end may be omitted.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Criteria is the wire form of a filter. Field names are registry keys or
// exact column names of the joined view.
type Criteria struct {
	Categorical map[string][]string `json:"categorical,omitempty"`
	Numeric     map[string]Range    `json:"numeric,omitempty"`
	Boolean     map[string]bool     `json:"boolean,omitempty"`
}

// Empty reports whether the criteria carry no constraint at all.
func (c Criteria) Empty() bool {
	return len(c.Categorical) == 0 && len(c.Numeric) == 0 && len(c.Boolean) == 0
}

type predicate struct {
	column string
	kind   Kind
	values map[string]struct{} // categorical, lower-cased
	min    float64
	max    float64
	want   bool
}

// Query is a validated filter bound to column names. It is safe to apply to
// any snapshot; a registry field whose column is missing matches no row.
type Query struct {
	preds []predicate
}

// Selection is the result of applying a query: matching rows in table order.
type Selection struct {
	Rows []int
	IDs  []string
}

// Count returns the number of selected donors.
func (s Selection) Count() int { return len(s.IDs) }

// Compile validates criteria against the frame's schema.
func Compile(c Criteria, f *Frame) (*Query, error) {
	q := &Query{}

	// Range bounds are validated before any field lookup.
	ranges := make(map[string]predicate, len(c.Numeric))
	for _, key := range sortedKeys(c.Numeric) {
		p, err := rangePredicate(key, c.Numeric[key])
		if err != nil {
			return nil, err
		}
		ranges[key] = p
	}

	for _, key := range sortedKeys(c.Categorical) {
		values := c.Categorical[key]
		col, err := resolveField(key, f, KindCategorical, KindBoolean)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[normalizeLabel(v)] = struct{}{}
		}
		q.preds = append(q.preds, predicate{column: col, kind: KindCategorical, values: set})
	}

	for _, key := range sortedKeys(c.Numeric) {
		col, err := resolveField(key, f, KindNumerical)
		if err != nil {
			return nil, err
		}
		r := c.Numeric[key]
		if r.Min == nil && r.Max == nil {
			continue
		}
		p := ranges[key]
		p.column = col
		q.preds = append(q.preds, p)
	}

	for _, key := range sortedKeys(c.Boolean) {
		col, err := resolveField(key, f, KindBoolean)
		if err != nil {
			return nil, err
		}
		q.preds = append(q.preds, predicate{column: col, kind: KindBoolean, want: c.Boolean[key]})
	}
	return q, nil
}

// Apply evaluates the query over every row of f.
func (q *Query) Apply(f *Frame) Selection {
	cols := make([]*Column, len(q.preds))
	for i, p := range q.preds {
		cols[i], _ = f.Column(p.column)
	}

	sel := Selection{}
	for row := 0; row < f.Len(); row++ {
		if q.match(cols, row) {
			sel.Rows = append(sel.Rows, row)
			sel.IDs = append(sel.IDs, f.ID(row))
		}
	}
	return sel
}

func (q *Query) match(cols []*Column, row int) bool {
	for i, p := range q.preds {
		col := cols[i]
		if col == nil {
			return false
		}
		cell := col.Cells[row]
		if !cell.Valid {
			return false
		}
		switch p.kind {
		case KindCategorical:
			if _, ok := p.values[normalizeLabel(cell.Text)]; !ok {
				return false
			}
		case KindNumerical:
			if !cell.IsNum || cell.Num < p.min || cell.Num > p.max {
				return false
			}
		case KindBoolean:
			if (cell.Num == 1) != p.want {
				return false
			}
		}
	}
	return true
}

// Filter compiles and applies criteria in one step.
func Filter(c Criteria, f *Frame) (Selection, error) {
	q, err := Compile(c, f)
	if err != nil {
		return Selection{}, err
	}
	return q.Apply(f), nil
}

func rangePredicate(key string, r Range) (predicate, error) {
	p := predicate{kind: KindNumerical, min: math.Inf(-1), max: math.Inf(1)}
	if r.Min != nil {
		if math.IsNaN(*r.Min) || math.IsInf(*r.Min, 0) {
			return p, &InvalidFilterError{Field: key, Reason: "min is not a finite number"}
		}
		p.min = *r.Min
	}
	if r.Max != nil {
		if math.IsNaN(*r.Max) || math.IsInf(*r.Max, 0) {
			return p, &InvalidFilterError{Field: key, Reason: "max is not a finite number"}
		}
		p.max = *r.Max
	}
	if p.min > p.max {
		return p, &InvalidFilterError{Field: key, Reason: fmt.Sprintf("min %g is greater than max %g", p.min, p.max)}
	}
	return p, nil
}

func resolveField(key string, f *Frame, accept ...Kind) (string, error) {
	if field, ok := LookupField(key); ok {
		if !kindIn(field.Kind, accept) {
			return "", &InvalidFilterError{Field: key, Reason: fmt.Sprintf("field is %s", field.Kind)}
		}
		if _, ok := f.Column(field.Column); !ok {
			return "", &UnknownFieldError{Kind: "filter field", Name: key}
		}
		return field.Column, nil
	}
	col, ok := f.Column(key)
	if !ok {
		return "", &UnknownFieldError{Kind: "filter field", Name: key}
	}
	if !kindIn(col.Kind, accept) {
		return "", &InvalidFilterError{Field: key, Reason: fmt.Sprintf("column is %s", col.Kind)}
	}
	return col.Name, nil
}

func kindIn(k Kind, set []Kind) bool {
	for _, s := range set {
		if k == s {
			return true
		}
	}
	return false
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
