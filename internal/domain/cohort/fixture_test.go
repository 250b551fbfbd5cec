package cohort

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

const (
	idD1 = "RRID:SAMN1"
	idD2 = "RRID:SAMN2"
	idD3 = "DON3"
)

// testTables returns a small cohort: D1 age 30 control, D2 age 45 T1D,
// D3 age 60 control (no RRID).
func testTables() *Tables {
	return &Tables{
		Donors: Table{
			Name: "donors.tsv",
			Header: []string{
				"Accession", "RRID", "Age (years)", "Description of diabetes status", "Gender",
				"AAB GADA POSITIVE", "AAB IA2 POSITIVE", "AAB IAA POSITIVE", "AAB ZNT8 POSITIVE", "BMI",
			},
			Rows: [][]string{
				{"DON1", "RRID:SAMN1", "30", "control", "Male", "False", "False", "False", "False", "22.5"},
				{"DON2", "RRID:SAMN2", "45", "T1D", "Female", "True", "True", "False", "False", "NA"},
				{"DON3", "", "60", "control", "Female", "yes", "no", "NA", "-", "-999"},
			},
		},
		Biosamples: Table{
			Name:   "biosamples.tsv",
			Header: []string{"Accession", "Donors", "Isolation_center", "Purity (Percentage)"},
			Rows: [][]string{
				{"BIO1", "DON1", "Center A", "85"},
				{"BIO2", "RRID:SAMN1", "Center B", "90"},
				{"BIO3", "DON3", "Center A", "70"},
				{"BIO9", "DON9", "Center C", "50"},
			},
		},
		Traits: Table{
			Name:   "traits.csv",
			Header: []string{"RRID", "HPAP ID", "INS-IEQ Basal Secretion", "INS-IEQ AUC", "X"},
			Rows: [][]string{
				{"RRID:SAMN1", "HPAP-001", "1.5", "10", "5"},
				{"RRID:SAMN2", "HPAP-002", "NA", "12", "NA"},
				{"RRID:SAMN99", "HPAP-099", "2", "3", "1"},
			},
		},
		Series: []SeriesTable{{
			Key:   "ins_ieq",
			Label: "Insulin (IEQ normalized)",
			Unit:  "ng/100 IEQ/min",
			Table: Table{
				Name:   "ins_ieq.csv",
				Header: []string{"", "time", "RRID:SAMN1", "DON3", "RRID:SAMN77"},
				Rows: [][]string{
					{"0", "0", "1", "2", "5"},
					{"1", "3", "1.5", "NA", "6"},
				},
			},
		}},
	}
}

func mustBuild(t *testing.T, tables *Tables) *Snapshot {
	t.Helper()
	snap, err := Build(tables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return snap
}

// stubLoader returns whatever tables or error it currently holds.
type stubLoader struct {
	mu     sync.Mutex
	tables *Tables
	err    error
	calls  int
}

func (l *stubLoader) Load(ctx context.Context) (*Tables, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.tables, nil
}

func (l *stubLoader) set(tables *Tables, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tables, l.err = tables, err
}

func loadedStore(t *testing.T) (*Store, *stubLoader) {
	t.Helper()
	loader := &stubLoader{tables: testTables()}
	store := NewStore(loader, zerolog.Nop())
	if _, err := store.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return store, loader
}

var errSourceMissing = errors.New("source file missing")

func ptr(v float64) *float64 { return &v }

func sameIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
