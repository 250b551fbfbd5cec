package cohort

import "strings"

// TraitRow holds one donor's requested trait values. A nil value is absent.
type TraitRow struct {
	DonorID string              `json:"donor_id"`
	Values  map[string]*float64 `json:"values"`
}

// TraitTable is the resolved trait slice for a donor set.
type TraitTable struct {
	Names []string   `json:"trait_names"`
	Rows  []TraitRow `json:"data"`
}

// Value returns the trait value for a donor, if the donor is in the table
// and the value is present.
func (t *TraitTable) Value(donorID, name string) (float64, bool) {
	for _, r := range t.Rows {
		if r.DonorID == donorID {
			if v := r.Values[name]; v != nil {
				return *v, true
			}
			return 0, false
		}
	}
	return 0, false
}

// Traits resolves trait values for the donors in ids. Donors unknown to the
// snapshot or without a trait record are skipped. An empty names list means
// every trait.
func (s *Snapshot) Traits(ids []string, names []string) (*TraitTable, error) {
	if len(names) == 0 {
		names = s.traitNames
	}
	cols := make([]*Column, len(names))
	for i, n := range names {
		col, ok := s.frame.Column(n)
		if !ok || col.Source != SourceTrait {
			return nil, &UnknownFieldError{Kind: "trait", Name: n}
		}
		cols[i] = col
	}

	out := &TraitTable{Names: append([]string(nil), names...), Rows: []TraitRow{}}
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		row, ok := s.frame.Row(id)
		if !ok || !s.hasTraits[row] || seen[row] {
			continue
		}
		seen[row] = true
		tr := TraitRow{DonorID: s.frame.ID(row), Values: make(map[string]*float64, len(cols))}
		for i, col := range cols {
			if v, ok := col.Number(row); ok {
				tr.Values[names[i]] = &v
			} else {
				tr.Values[names[i]] = nil
			}
		}
		out.Rows = append(out.Rows, tr)
	}
	return out, nil
}

// SeriesSlice is a time-series table restricted to a donor set.
type SeriesSlice struct {
	Key    string                `json:"timeseries_type"`
	Unit   string                `json:"unit,omitempty"`
	Time   []float64             `json:"time_points"`
	Donors []string              `json:"donors"`
	Values map[string][]*float64 `json:"data"`
}

// TimeSeries resolves one time-series table for the donors in ids, in the
// order given. Donors without a column in that table are skipped.
func (s *Snapshot) TimeSeries(ids []string, key string) (*SeriesSlice, error) {
	series, ok := s.series[key]
	if !ok {
		return nil, &UnknownFieldError{Kind: "time series", Name: key}
	}
	out := &SeriesSlice{
		Key:    key,
		Unit:   series.Unit,
		Time:   append([]float64(nil), series.Time...),
		Donors: []string{},
		Values: make(map[string][]*float64),
	}
	for _, id := range ids {
		row, ok := s.frame.Row(id)
		if !ok {
			continue
		}
		cells, ok := series.values[row]
		if !ok {
			continue
		}
		donor := s.frame.ID(row)
		if _, dup := out.Values[donor]; dup {
			continue
		}
		vals := make([]*float64, len(cells))
		for i, c := range cells {
			if c.Valid {
				v := c.Num
				vals[i] = &v
			}
		}
		out.Donors = append(out.Donors, donor)
		out.Values[donor] = vals
	}
	return out, nil
}

// SeriesType describes one loaded time-series table.
type SeriesType struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Unit  string `json:"unit"`
}

// SeriesCatalog lists the loaded time-series tables in manifest order.
func (s *Snapshot) SeriesCatalog() []SeriesType {
	out := make([]SeriesType, 0, len(s.seriesKeys))
	for _, k := range s.seriesKeys {
		ser := s.series[k]
		out = append(out, SeriesType{Value: k, Label: ser.Label, Unit: ser.Unit})
	}
	return out
}

// TraitCategory groups traits that share a hormone and normalization.
type TraitCategory struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Traits      []Variable `json:"traits"`
}

var traitGroups = []struct{ prefix, name, description string }{
	{"INS-IEQ", "Insulin (IEQ normalized)", "Insulin secretion traits normalized to islet equivalents"},
	{"INS-content", "Insulin (Content normalized)", "Insulin secretion traits as percentage of total content"},
	{"GCG-IEQ", "Glucagon (IEQ normalized)", "Glucagon secretion traits normalized to islet equivalents"},
	{"GCG-content", "Glucagon (Content normalized)", "Glucagon secretion traits as percentage of total content"},
}

// TraitCategories groups the trait columns by hormone and normalization.
// Traits matching no group are omitted.
func (s *Snapshot) TraitCategories() []TraitCategory {
	out := make([]TraitCategory, len(traitGroups))
	for i, g := range traitGroups {
		out[i] = TraitCategory{Name: g.name, Description: g.description, Traits: []Variable{}}
	}
	for _, name := range s.traitNames {
		col, _ := s.frame.Column(name)
		for i, g := range traitGroups {
			if strings.Contains(name, g.prefix) {
				out[i].Traits = append(out[i].Traits, describeVariable(col))
				break
			}
		}
	}
	return out
}
