package cohort

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Orphans counts source rows that reference no known donor. They are
// dropped from the joined view.
type Orphans struct {
	Biosamples    int `json:"biosamples"`
	Traits        int `json:"traits"`
	SeriesColumns int `json:"series_columns"`
}

// Series is one loaded time-series table.
type Series struct {
	Key    string
	Label  string
	Unit   string
	Time   []float64
	values map[int][]Cell // by frame row
}

// Snapshot is an immutable, fully joined dataset. A snapshot is never
// modified after Build returns; reloads publish a new one.
type Snapshot struct {
	Version  uint64
	LoadedAt time.Time

	frame          *Frame
	traitNames     []string
	hasTraits      []bool
	series         map[string]*Series
	seriesKeys     []string
	biosampleCount int
	traitRecords   int
	orphans        Orphans
}

// Frame returns the joined cohort view.
func (s *Snapshot) Frame() *Frame { return s.frame }

// TraitNames returns the trait columns in trait-table order.
func (s *Snapshot) TraitNames() []string {
	return append([]string(nil), s.traitNames...)
}

// HasTraits reports whether the donor at row has a trait record.
func (s *Snapshot) HasTraits(row int) bool { return s.hasTraits[row] }

// Orphans returns the dropped-row counts from the last build.
func (s *Snapshot) Orphans() Orphans { return s.orphans }

// Stats summarizes the snapshot size.
type Stats struct {
	Version          uint64    `json:"version"`
	LoadedAt         time.Time `json:"loaded_at"`
	Donors           int       `json:"donors"`
	DonorsWithTraits int       `json:"donors_with_functional_data"`
	Biosamples       int       `json:"biosamples"`
	TraitRecords     int       `json:"trait_records"`
	Traits           int       `json:"traits"`
	Series           int       `json:"timeseries"`
	Orphans          Orphans   `json:"orphans"`
}

// Stats returns the snapshot size summary.
func (s *Snapshot) Stats() Stats {
	with := 0
	for _, ok := range s.hasTraits {
		if ok {
			with++
		}
	}
	return Stats{
		Version:          s.Version,
		LoadedAt:         s.LoadedAt,
		Donors:           s.frame.Len(),
		DonorsWithTraits: with,
		Biosamples:       s.biosampleCount,
		TraitRecords:     s.traitRecords,
		Traits:           len(s.traitNames),
		Series:           len(s.seriesKeys),
		Orphans:          s.orphans,
	}
}

// Bounds is an observed numeric range.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Metadata lists the filter options available in a snapshot.
type Metadata struct {
	Categorical      map[string][]string `json:"categorical_filters"`
	Numeric          map[string]Bounds   `json:"numerical_filters"`
	Boolean          []string            `json:"boolean_filters"`
	TotalDonors      int                 `json:"total_donors"`
	DonorsWithTraits int                 `json:"donors_with_functional_data"`
}

// Describe reports, for every registry field present in the snapshot, the
// sorted distinct categorical values or the observed numeric bounds. Absent
// values never contribute.
func (s *Snapshot) Describe() Metadata {
	stats := s.Stats()
	md := Metadata{
		Categorical:      make(map[string][]string),
		Numeric:          make(map[string]Bounds),
		Boolean:          []string{},
		TotalDonors:      stats.Donors,
		DonorsWithTraits: stats.DonorsWithTraits,
	}
	for _, f := range registry {
		col, ok := s.frame.Column(f.Column)
		if !ok {
			continue
		}
		switch f.Kind {
		case KindCategorical:
			md.Categorical[f.Key] = distinctLabels(col)
		case KindNumerical:
			if b, ok := observedBounds(col); ok {
				md.Numeric[f.Key] = b
			}
		case KindBoolean:
			md.Boolean = append(md.Boolean, f.Key)
		}
	}
	return md
}

func distinctLabels(col *Column) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, c := range col.Cells {
		if !c.Valid {
			continue
		}
		if _, ok := seen[c.Text]; ok {
			continue
		}
		seen[c.Text] = struct{}{}
		out = append(out, c.Text)
	}
	sort.Strings(out)
	return out
}

func observedBounds(col *Column) (Bounds, bool) {
	b := Bounds{Min: math.Inf(1), Max: math.Inf(-1)}
	found := false
	for _, c := range col.Cells {
		if !c.Valid || !c.IsNum {
			continue
		}
		found = true
		b.Min = math.Min(b.Min, c.Num)
		b.Max = math.Max(b.Max, c.Num)
	}
	return b, found
}

// maxListedValues caps the unique values reported per categorical variable.
const maxListedValues = 50

// Variable describes one column usable in an association analysis.
type Variable struct {
	Name         string   `json:"name"`
	Type         Kind     `json:"type"`
	Source       Source   `json:"source"`
	Description  string   `json:"description,omitempty"`
	UniqueValues []string `json:"unique_values,omitempty"`
	Range        *Bounds  `json:"range,omitempty"`
}

// VariableCatalog groups the analysis variables by source table.
type VariableCatalog struct {
	Donor     []Variable `json:"donor_variables"`
	Biosample []Variable `json:"biosample_variables"`
	Trait     []Variable `json:"trait_variables"`
}

// Variables lists every non-identifier column of the joined view.
func (s *Snapshot) Variables() VariableCatalog {
	cat := VariableCatalog{Donor: []Variable{}, Biosample: []Variable{}, Trait: []Variable{}}
	for _, col := range s.frame.Columns() {
		if identifierColumns[col.Name] || identifierColumns[strings.TrimPrefix(col.Name, biosamplePrefx)] {
			continue
		}
		v := describeVariable(col)
		switch col.Source {
		case SourceDonor:
			cat.Donor = append(cat.Donor, v)
		case SourceBiosample:
			cat.Biosample = append(cat.Biosample, v)
		case SourceTrait:
			cat.Trait = append(cat.Trait, v)
		}
	}
	return cat
}

func describeVariable(col *Column) Variable {
	v := Variable{Name: col.Name, Type: col.Kind, Source: col.Source}
	switch col.Kind {
	case KindCategorical:
		vals := distinctLabels(col)
		if len(vals) > maxListedValues {
			vals = vals[:maxListedValues]
		}
		v.UniqueValues = vals
	case KindNumerical:
		if b, ok := observedBounds(col); ok {
			v.Range = &b
		}
	}
	if col.Source == SourceTrait {
		v.Description = traitDescription(col.Name)
	}
	return v
}

var traitDescriptions = []struct{ token, text string }{
	{"Basal Secretion", "Average secretion rate during baseline period"},
	{"AUC", "Area under the curve during stimulation"},
	{"SI", "Stimulation index (fold change from basal)"},
	{"II", "Inhibition index"},
	{"phase 1", "First phase secretion response"},
	{"phase 2", "Second phase secretion response"},
}

func traitDescription(name string) string {
	for _, d := range traitDescriptions {
		if strings.Contains(name, d.token) {
			return d.text
		}
	}
	return ""
}
