package association

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pankbase/functional/internal/domain/cohort"
)

const (
	colAge    = "Age (years)"
	colStatus = "Description of diabetes status"
	colGender = "Gender"
	colBMI    = "BMI"
)

func testTables() *cohort.Tables {
	return &cohort.Tables{
		Donors: cohort.Table{
			Header: []string{"Accession", "RRID", colAge, colStatus, colGender, colBMI},
			Rows: [][]string{
				{"DON1", "R1", "20", "control", "Male", "20"},
				{"DON2", "R2", "30", "control", "Female", "25"},
				{"DON3", "R3", "40", "T1D", "Male", "22"},
				{"DON4", "R4", "50", "T1D", "Female", "27"},
				{"DON5", "R5", "60", "control", "Male", "NA"},
				{"DON6", "R6", "70", "T2D", "Female", "24"},
				{"DON7", "R7", "25", "T2D", "Male", "21"},
				{"DON8", "R8", "35", "control", "Female", "23"},
			},
		},
		Traits: cohort.Table{
			Header: []string{"RRID", "T", "U", "X"},
			Rows: [][]string{
				{"R1", "1.0", "10", "5"},
				{"R2", "2.5", "9", "NA"},
				{"R3", "2.0", "12", ""},
				{"R4", "4.0", "7", ""},
				{"R5", "3.0", "11", ""},
				{"R6", "5.5", "6", ""},
				{"R7", "1.5", "13", ""},
				{"R8", "2.2", "8", ""},
			},
		},
	}
}

func testFrame(t *testing.T) *cohort.Frame {
	t.Helper()
	snap, err := cohort.Build(testTables())
	require.NoError(t, err)
	return snap.Frame()
}

func allRows(f *cohort.Frame) []int {
	rows := make([]int, f.Len())
	for i := range rows {
		rows[i] = i
	}
	return rows
}

func testEngine() *Engine {
	return NewEngine(Options{Workers: 4, MinSampleMargin: DefaultMinSampleMargin}, zerolog.Nop())
}

type tablesLoader struct {
	tables *cohort.Tables
}

func (l tablesLoader) Load(ctx context.Context) (*cohort.Tables, error) {
	return l.tables, nil
}

func testStore(t *testing.T) *cohort.Store {
	t.Helper()
	store := cohort.NewStore(tablesLoader{tables: testTables()}, zerolog.Nop())
	_, err := store.Load(context.Background())
	require.NoError(t, err)
	return store
}
