package cohort

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the value type of a column.
type Kind string

const (
	KindCategorical Kind = "categorical"
	KindNumerical   Kind = "numerical"
	KindBoolean     Kind = "boolean"
)

// Source tells which table a column of the joined view came from.
type Source string

const (
	SourceDonor     Source = "donor"
	SourceBiosample Source = "biosample"
	SourceTrait     Source = "trait"
	SourceExternal  Source = "external"
)

// MissingSentinel is the numeric placeholder some exports use for "not
// measured". It is read as absent.
const MissingSentinel = -999

var absentTokens = map[string]struct{}{
	"":    {},
	"-":   {},
	"NA":  {},
	"N/A": {},
	"NaN": {},
	"nan": {},
}

// Cell is a single value of the joined view. The zero Cell is absent.
type Cell struct {
	Text  string
	Num   float64
	Valid bool
	IsNum bool
}

// Absent reports whether the cell holds no value.
func (c Cell) Absent() bool { return !c.Valid }

// ParseCell normalizes a raw field. Absence tokens and the numeric sentinel
// yield an absent cell, never zero.
func ParseCell(raw string) Cell {
	s := strings.TrimSpace(raw)
	if _, ok := absentTokens[s]; ok {
		return Cell{}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if v == MissingSentinel || math.IsNaN(v) || math.IsInf(v, 0) {
			return Cell{}
		}
		return Cell{Text: s, Num: v, Valid: true, IsNum: true}
	}
	return Cell{Text: s, Valid: true}
}

// NumberCell builds a present numeric cell.
func NumberCell(v float64) Cell {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Cell{}
	}
	return Cell{Text: strconv.FormatFloat(v, 'f', -1, 64), Num: v, Valid: true, IsNum: true}
}

// BoolCell builds a present boolean cell encoded as 1/0.
func BoolCell(b bool) Cell {
	if b {
		return Cell{Text: "true", Num: 1, Valid: true, IsNum: true}
	}
	return Cell{Text: "false", Num: 0, Valid: true, IsNum: true}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	}
	return false, false
}

// Column is one named column of the joined view, aligned with the frame
// rows.
type Column struct {
	Name   string
	Source Source
	Kind   Kind
	Cells  []Cell
}

// Number returns the numeric value at row i. Boolean cells read as 1/0.
func (c *Column) Number(i int) (float64, bool) {
	cell := c.Cells[i]
	if !cell.Valid || !cell.IsNum {
		return 0, false
	}
	return cell.Num, true
}

// Label returns the text value at row i.
func (c *Column) Label(i int) (string, bool) {
	cell := c.Cells[i]
	return cell.Text, cell.Valid
}

// Present counts the non-absent cells.
func (c *Column) Present() int {
	n := 0
	for _, cell := range c.Cells {
		if cell.Valid {
			n++
		}
	}
	return n
}

// Frame is the immutable joined cohort view: one row per donor, in donor
// table order.
type Frame struct {
	ids    []string
	index  map[string]int
	cols   []*Column
	byName map[string]int
}

// NewFrame builds a frame over the given donor ids. aliases maps alternate
// identifiers (accessions, RRIDs) to row positions.
func NewFrame(ids []string, aliases map[string]int, cols []*Column) *Frame {
	f := &Frame{
		ids:    ids,
		index:  make(map[string]int, len(ids)+len(aliases)),
		cols:   cols,
		byName: make(map[string]int, len(cols)),
	}
	for alias, row := range aliases {
		f.index[alias] = row
	}
	for i, id := range ids {
		f.index[id] = i
	}
	for i, c := range cols {
		f.byName[c.Name] = i
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.ids) }

// ID returns the canonical donor id of row i.
func (f *Frame) ID(i int) string { return f.ids[i] }

// IDs returns the canonical donor ids in row order.
func (f *Frame) IDs() []string {
	return append([]string(nil), f.ids...)
}

// Row resolves a donor id or alias to its row.
func (f *Frame) Row(id string) (int, bool) {
	i, ok := f.index[id]
	return i, ok
}

// Column looks up a column by exact name.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.byName[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Columns returns the columns in view order.
func (f *Frame) Columns() []*Column {
	return append([]*Column(nil), f.cols...)
}

// ColumnsFrom returns the columns that came from one source table.
func (f *Frame) ColumnsFrom(src Source) []*Column {
	var out []*Column
	for _, c := range f.cols {
		if c.Source == src {
			out = append(out, c)
		}
	}
	return out
}

// WithColumns returns a frame that shares the receiver's rows and columns
// and adds extra. An extra column with the name of an existing one replaces
// it in the returned frame; the replaced names are reported. The receiver is
// never modified.
func (f *Frame) WithColumns(extra ...*Column) (*Frame, []string) {
	out := &Frame{
		ids:    f.ids,
		index:  f.index,
		cols:   append([]*Column(nil), f.cols...),
		byName: make(map[string]int, len(f.byName)+len(extra)),
	}
	for k, v := range f.byName {
		out.byName[k] = v
	}

	var shadowed []string
	for _, c := range extra {
		if i, ok := out.byName[c.Name]; ok {
			if out.cols[i].Source != SourceExternal {
				shadowed = append(shadowed, c.Name)
			}
			out.cols[i] = c
			continue
		}
		out.byName[c.Name] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	return out, shadowed
}
