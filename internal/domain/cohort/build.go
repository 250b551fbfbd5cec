package cohort

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Table is a raw delimited table as read from disk: trimmed header names and
// unparsed string fields.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

func (t *Table) field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// SeriesTable is one time-series table: a time axis column and one column
// per donor.
type SeriesTable struct {
	Key   string
	Label string
	Unit  string
	Table
}

// Tables is everything a Loader produces for one snapshot.
type Tables struct {
	Donors     Table
	Biosamples Table
	Traits     Table
	Series     []SeriesTable
}

const (
	colAccession   = "Accession"
	colRRID        = "RRID"
	colDonorRef    = "Donors"
	colTraitDonor  = "Donor ID"
	colTraitHPAP   = "HPAP ID"
	colSeriesTime  = "time"
	biosamplePrefx = "biosample_"

	// BiosampleCountColumn holds the number of biosamples linked to a donor.
	BiosampleCountColumn = "biosample_count"
)

var identifierColumns = map[string]bool{
	colAccession:      true,
	colRRID:           true,
	"Center Donor ID": true,
	colDonorRef:       true,
}

// Columns whose type is fixed regardless of the observed values.
var knownKinds = map[string]Kind{
	"Age (years)":               KindNumerical,
	"BMI":                       KindNumerical,
	"C-Peptide (ng/ml)":         KindNumerical,
	"Diabetes Duration (years)": KindNumerical,
	"HbA1C (percentage)":        KindNumerical,
	"AAB GADA value (unit/ml)":  KindNumerical,
	"AAB IA2 value (unit/ml)":   KindNumerical,
	"AAB IAA value (unit/ml)":   KindNumerical,
	"AAB ZNT8 value (unit/ml)":  KindNumerical,
	"Number AAB":                KindNumerical,
	"Hospital Stay (hours)":     KindNumerical,

	"AAB GADA POSITIVE":          KindBoolean,
	"AAB IA2 POSITIVE":           KindBoolean,
	"AAB IAA POSITIVE":           KindBoolean,
	"AAB ZNT8 POSITIVE":          KindBoolean,
	"Multi AAB":                  KindBoolean,
	"Only AAB GADA":              KindBoolean,
	"Only AAB IA2":               KindBoolean,
	"Only AAB IAA":               KindBoolean,
	"Only AAB ZNT8":              KindBoolean,
	"Family History of Diabetes": KindBoolean,

	"Cold Ischaemia Time (hours)":                 KindNumerical,
	"Warm Ischaemia Duration / Down Time (hours)": KindNumerical,
	"Digest Time (hours)":                         KindNumerical,
	"IEQ/Pancreas Weight (grams)":                 KindNumerical,
	"Islet Yield (IEQ)":                           KindNumerical,
	"Percentage Trapped (percentage)":             KindNumerical,
	"Pre-Shipment Culture Time (hours)":           KindNumerical,
	"Prep Viability (percentage)":                 KindNumerical,
	"Purity (Percentage)":                         KindNumerical,
	"Islet Function Available":                    KindBoolean,
	"Islet Histology":                             KindBoolean,
	"Islet Morphology":                            KindBoolean,
}

// Autoantibody panel markers, in report order.
var aabMarkers = []string{"GADA", "IA2", "IAA", "ZNT8"}

const (
	colNumberAAB = "Number AAB"
	colMultiAAB  = "Multi AAB"
)

func aabPositiveColumn(m string) string { return "AAB " + m + " POSITIVE" }
func aabOnlyColumn(m string) string     { return "Only AAB " + m }

// numericShare is the fraction of present values that must parse as numbers
// for an untyped column to be treated as numerical.
const numericShare = 0.8

// Build validates the raw tables and joins them into a snapshot. Key
// violations across all tables are collected into one DataIntegrityError.
func Build(t *Tables) (*Snapshot, error) {
	b := &builder{tables: t}
	b.donors()
	b.biosamples()
	b.traits()
	b.series()
	if len(b.violations) > 0 {
		return nil, &DataIntegrityError{Violations: b.violations}
	}

	snap := &Snapshot{
		LoadedAt:       time.Now().UTC(),
		frame:          NewFrame(b.ids, b.aliases, b.cols),
		traitNames:     b.traitNames,
		hasTraits:      b.hasTraits,
		series:         b.seriesByKey,
		seriesKeys:     b.seriesKeys,
		biosampleCount: len(t.Biosamples.Rows),
		traitRecords:   len(t.Traits.Rows),
		orphans:        b.orphans,
	}
	return snap, nil
}

type builder struct {
	tables     *Tables
	violations []Violation

	ids         []string
	rrids       []string
	aliases     map[string]int
	byRRID      map[string]int
	byAccession map[string]int
	cols        []*Column
	colIndex    map[string]int
	traitNames  []string
	hasTraits   []bool

	seriesByKey map[string]*Series
	seriesKeys  []string
	orphans     Orphans
}

func (b *builder) violate(table, column, reason string, values ...string) {
	sort.Strings(values)
	b.violations = append(b.violations, Violation{Table: table, Column: column, Reason: reason, Values: values})
}

func (b *builder) addColumn(c *Column) {
	if b.colIndex == nil {
		b.colIndex = make(map[string]int)
	}
	if i, ok := b.colIndex[c.Name]; ok {
		b.cols[i] = c
		return
	}
	b.colIndex[c.Name] = len(b.cols)
	b.cols = append(b.cols, c)
}

// resolve maps a donor reference to its row, matching RRIDs before
// Accessions.
func (b *builder) resolve(key string) (int, bool) {
	if i, ok := b.byRRID[key]; ok {
		return i, true
	}
	i, ok := b.byAccession[key]
	return i, ok
}

func (b *builder) donors() {
	t := &b.tables.Donors
	name := tableName(t, "donors")
	acc := t.Index(colAccession)
	if acc < 0 {
		b.violate(name, colAccession, "missing key column")
		return
	}
	rrid := t.Index(colRRID)

	n := len(t.Rows)
	b.ids = make([]string, n)
	b.rrids = make([]string, n)
	b.aliases = make(map[string]int, 2*n)

	accs := make([]string, n)
	var blank []string
	for i, row := range t.Rows {
		accs[i] = strings.TrimSpace(t.field(row, acc))
		if accs[i] == "" {
			blank = append(blank, fmt.Sprintf("row %d", i+1))
		}
		if rrid >= 0 {
			if c := ParseCell(t.field(row, rrid)); c.Valid {
				b.rrids[i] = c.Text
			}
		}
	}
	if len(blank) > 0 {
		b.violate(name, colAccession, "empty key", blank...)
	}
	if d := duplicates(accs); len(d) > 0 {
		b.violate(name, colAccession, "duplicate key", d...)
	}
	if d := duplicates(b.rrids); len(d) > 0 {
		b.violate(name, colRRID, "duplicate key", d...)
	}

	b.byRRID = make(map[string]int, n)
	b.byAccession = make(map[string]int, n)
	for i := range t.Rows {
		b.ids[i] = accs[i]
		if b.rrids[i] != "" {
			b.ids[i] = b.rrids[i]
			if _, ok := b.byRRID[b.rrids[i]]; !ok {
				b.byRRID[b.rrids[i]] = i
			}
		}
		if accs[i] != "" {
			if _, ok := b.byAccession[accs[i]]; !ok {
				b.byAccession[accs[i]] = i
			}
		}
	}
	var crossed []string
	for i, r := range b.rrids {
		if j, ok := b.byAccession[r]; ok && r != "" && j != i {
			crossed = append(crossed, r)
		}
	}
	if len(crossed) > 0 {
		b.violate(name, colRRID, "RRID matches another donor's Accession", crossed...)
	}
	for k, i := range b.byAccession {
		b.aliases[k] = i
	}
	for k, i := range b.byRRID {
		b.aliases[k] = i
	}

	for j, h := range t.Header {
		raw := make([]string, n)
		for i, row := range t.Rows {
			raw[i] = t.field(row, j)
		}
		b.addColumn(buildColumn(h, SourceDonor, raw))
	}
	b.deriveAutoantibodies()
}

// deriveAutoantibodies recomputes the panel summary columns from the four
// positive flags so they can never disagree with them.
func (b *builder) deriveAutoantibodies() {
	var markers []*Column
	for _, m := range aabMarkers {
		if i, ok := b.colIndex[aabPositiveColumn(m)]; ok {
			markers = append(markers, b.cols[i])
		} else {
			markers = append(markers, nil)
		}
	}
	found := false
	for _, c := range markers {
		found = found || c != nil
	}
	if !found {
		return
	}

	n := len(b.ids)
	number := make([]Cell, n)
	multi := make([]Cell, n)
	only := make([][]Cell, len(aabMarkers))
	for k := range only {
		only[k] = make([]Cell, n)
	}

	for i := 0; i < n; i++ {
		positive := make([]bool, len(markers))
		observed, count := 0, 0
		for k, c := range markers {
			if c == nil || !c.Cells[i].Valid {
				continue
			}
			observed++
			if c.Cells[i].Num == 1 {
				positive[k] = true
				count++
			}
		}
		if observed == 0 {
			continue
		}
		number[i] = NumberCell(float64(count))
		multi[i] = BoolCell(count >= 2)
		for k := range markers {
			only[k][i] = BoolCell(positive[k] && count == 1)
		}
	}

	b.addColumn(&Column{Name: colNumberAAB, Source: SourceDonor, Kind: KindNumerical, Cells: number})
	b.addColumn(&Column{Name: colMultiAAB, Source: SourceDonor, Kind: KindBoolean, Cells: multi})
	for k, m := range aabMarkers {
		b.addColumn(&Column{Name: aabOnlyColumn(m), Source: SourceDonor, Kind: KindBoolean, Cells: only[k]})
	}
}

func (b *builder) biosamples() {
	t := &b.tables.Biosamples
	if len(t.Header) == 0 || b.ids == nil {
		return
	}
	name := tableName(t, "biosamples")
	acc, ref := t.Index(colAccession), t.Index(colDonorRef)
	if acc < 0 {
		b.violate(name, colAccession, "missing key column")
	}
	if ref < 0 {
		b.violate(name, colDonorRef, "missing donor reference column")
	}
	if acc < 0 || ref < 0 {
		return
	}

	accs := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		accs[i] = strings.TrimSpace(t.field(row, acc))
	}
	if d := duplicates(accs); len(d) > 0 {
		b.violate(name, colAccession, "duplicate key", d...)
	}

	n := len(b.ids)
	first := make([]int, n)
	count := make([]int, n)
	for i := range first {
		first[i] = -1
	}
	for i, row := range t.Rows {
		donor, ok := b.resolve(strings.TrimSpace(t.field(row, ref)))
		if !ok {
			b.orphans.Biosamples++
			continue
		}
		if first[donor] < 0 {
			first[donor] = i
		}
		count[donor]++
	}

	for j, h := range t.Header {
		if j == ref {
			continue
		}
		all := make([]string, len(t.Rows))
		for i, row := range t.Rows {
			all[i] = t.field(row, j)
		}
		kind := kindOf(h, all)
		raw := make([]string, n)
		for d := range raw {
			if first[d] >= 0 {
				raw[d] = all[first[d]]
			}
		}
		b.addColumn(typedColumn(biosamplePrefx+h, SourceBiosample, kind, raw))
	}

	counts := make([]Cell, n)
	for d, c := range count {
		counts[d] = NumberCell(float64(c))
	}
	b.addColumn(&Column{Name: BiosampleCountColumn, Source: SourceBiosample, Kind: KindNumerical, Cells: counts})
}

func (b *builder) traits() {
	t := &b.tables.Traits
	n := len(b.ids)
	b.hasTraits = make([]bool, n)
	if len(t.Header) == 0 || b.ids == nil {
		return
	}
	name := tableName(t, "traits")
	id := t.Index(colRRID)
	if id < 0 {
		id = t.Index(colTraitDonor)
	}
	if id < 0 {
		b.violate(name, colRRID, "missing key column")
		return
	}

	keys := make([]string, len(t.Rows))
	rows := make([]int, len(t.Rows))
	for i, row := range t.Rows {
		key := strings.TrimSpace(t.field(row, id))
		donor, ok := b.resolve(key)
		if !ok {
			rows[i] = -1
			b.orphans.Traits++
			keys[i] = key
			continue
		}
		rows[i] = donor
		keys[i] = b.ids[donor]
		b.hasTraits[donor] = true
	}
	if d := duplicates(keys); len(d) > 0 {
		b.violate(name, t.Header[id], "duplicate key", d...)
		return
	}

	var collisions []string
	for j, h := range t.Header {
		if j == id || h == colTraitHPAP {
			continue
		}
		if _, ok := b.colIndex[h]; ok {
			collisions = append(collisions, h)
			continue
		}
		cells := make([]Cell, n)
		for i, row := range t.Rows {
			if rows[i] < 0 {
				continue
			}
			if c := ParseCell(t.field(row, j)); c.IsNum {
				cells[rows[i]] = c
			}
		}
		b.addColumn(&Column{Name: h, Source: SourceTrait, Kind: KindNumerical, Cells: cells})
		b.traitNames = append(b.traitNames, h)
	}
	if len(collisions) > 0 {
		b.violate(name, "*", "trait name collides with a metadata column", collisions...)
	}
}

func (b *builder) series() {
	b.seriesByKey = make(map[string]*Series, len(b.tables.Series))
	for i := range b.tables.Series {
		st := &b.tables.Series[i]
		name := tableName(&st.Table, st.Key)
		if _, dup := b.seriesByKey[st.Key]; dup {
			b.violate(name, "*", "duplicate series key", st.Key)
			continue
		}

		header := st.Header
		offset := 0
		if len(header) > 0 && (header[0] == "" || strings.HasPrefix(header[0], "Unnamed")) {
			offset = 1
		}
		timeCol := -1
		for j := offset; j < len(header); j++ {
			if header[j] == colSeriesTime {
				timeCol = j
				break
			}
		}
		if timeCol < 0 {
			timeCol = offset
		}
		if timeCol >= len(header) {
			b.violate(name, colSeriesTime, "missing time axis")
			continue
		}

		var donorHeaders []string
		var donorCols []int
		for j := offset; j < len(header); j++ {
			if j == timeCol {
				continue
			}
			donorHeaders = append(donorHeaders, header[j])
			donorCols = append(donorCols, j)
		}
		if d := duplicates(donorHeaders); len(d) > 0 {
			b.violate(name, "*", "duplicate donor column", d...)
			continue
		}

		s := &Series{
			Key:    st.Key,
			Label:  st.Label,
			Unit:   st.Unit,
			Time:   make([]float64, 0, len(st.Rows)),
			values: make(map[int][]Cell, len(donorCols)),
		}
		bad := false
		for r, row := range st.Rows {
			c := ParseCell(st.field(row, timeCol))
			if !c.IsNum {
				b.violate(name, colSeriesTime, fmt.Sprintf("non-numeric time point at row %d", r+1))
				bad = true
				break
			}
			s.Time = append(s.Time, c.Num)
		}
		if bad {
			continue
		}

		for k, j := range donorCols {
			donor, ok := b.resolve(strings.TrimSpace(donorHeaders[k]))
			if !ok {
				b.orphans.SeriesColumns++
				continue
			}
			vals := make([]Cell, len(st.Rows))
			for r, row := range st.Rows {
				if c := ParseCell(st.field(row, j)); c.IsNum {
					vals[r] = c
				}
			}
			s.values[donor] = vals
		}
		b.seriesByKey[st.Key] = s
		b.seriesKeys = append(b.seriesKeys, st.Key)
	}
}

func buildColumn(name string, src Source, raw []string) *Column {
	return typedColumn(name, src, kindOf(name, raw), raw)
}

func kindOf(name string, raw []string) Kind {
	if identifierColumns[name] {
		return KindCategorical
	}
	if k, ok := knownKinds[name]; ok {
		return k
	}
	return inferKind(raw)
}

func inferKind(raw []string) Kind {
	present, numeric, boolean := 0, 0, 0
	for _, r := range raw {
		c := ParseCell(r)
		if !c.Valid {
			continue
		}
		present++
		if c.IsNum {
			numeric++
		}
		if _, ok := parseBool(c.Text); ok {
			boolean++
		}
	}
	switch {
	case present == 0:
		return KindCategorical
	case boolean == present:
		return KindBoolean
	case float64(numeric)/float64(present) > numericShare:
		return KindNumerical
	}
	return KindCategorical
}

func typedColumn(name string, src Source, kind Kind, raw []string) *Column {
	cells := make([]Cell, len(raw))
	for i, r := range raw {
		c := ParseCell(r)
		switch kind {
		case KindNumerical:
			if !c.IsNum {
				c = Cell{}
			}
		case KindBoolean:
			switch v, ok := parseBool(c.Text); {
			case ok:
				c = BoolCell(v)
			case c.IsNum && (c.Num == 0 || c.Num == 1):
				c = BoolCell(c.Num == 1)
			default:
				c = Cell{}
			}
		}
		cells[i] = c
	}
	return &Column{Name: name, Source: src, Kind: kind, Cells: cells}
}

// duplicates returns the non-empty values that occur more than once.
func duplicates(values []string) []string {
	seen := make(map[string]int, len(values))
	var out []string
	for _, v := range values {
		if v == "" {
			continue
		}
		seen[v]++
		if seen[v] == 2 {
			out = append(out, v)
		}
	}
	return out
}

func tableName(t *Table, fallback string) string {
	if t.Name != "" {
		return t.Name
	}
	return fallback
}
