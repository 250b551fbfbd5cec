package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pankbase/functional/internal/domain/association"
	"github.com/pankbase/functional/internal/domain/cohort"
)

func testTables() *cohort.Tables {
	return &cohort.Tables{
		Donors: cohort.Table{
			Header: []string{"Accession", "RRID", "Age (years)", "Description of diabetes status"},
			Rows: [][]string{
				{"DON1", "RRID:SAMN1", "20", "control"},
				{"DON2", "RRID:SAMN2", "30", "control"},
				{"DON3", "RRID:SAMN3", "40", "T1D"},
				{"DON4", "RRID:SAMN4", "50", "T1D"},
				{"DON5", "RRID:SAMN5", "60", "control"},
				{"DON6", "", "70", "T1D"},
			},
		},
		Traits: cohort.Table{
			Header: []string{"RRID", "Insulin AUC"},
			Rows: [][]string{
				{"RRID:SAMN1", "1.0"},
				{"RRID:SAMN2", "2.5"},
				{"RRID:SAMN3", "2.0"},
				{"RRID:SAMN4", "4.0"},
				{"RRID:SAMN5", "3.0"},
			},
		},
	}
}

type tablesLoader struct{ tables *cohort.Tables }

func (l tablesLoader) Load(ctx context.Context) (*cohort.Tables, error) {
	return l.tables, nil
}

func testStore(t *testing.T) *cohort.Store {
	t.Helper()
	store := cohort.NewStore(tablesLoader{tables: testTables()}, zerolog.Nop())
	if _, err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return store
}

func newTestService(t *testing.T, fetcher Fetcher) (*Service, SourceRepository) {
	t.Helper()
	store := testStore(t)
	engine := association.NewEngine(association.Options{Workers: 2, MinSampleMargin: association.DefaultMinSampleMargin}, zerolog.Nop())
	repo := NewMemoryRepo()
	return NewService(repo, fetcher, association.NewService(store, engine), store, zerolog.Nop()), repo
}

// stubFetcher records the last request and serves fixed data.
type stubFetcher struct {
	mu   sync.Mutex
	last FetchRequest
	data association.ExternalData
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, src *Source, req FetchRequest) (association.ExternalData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	return f.data, f.err
}

// sourceServer serves values for the requested donor ids: the value is the
// position of the id in the request plus one.
func sourceServer(t *testing.T, status int) (*httptest.Server, *[]FetchRequest) {
	t.Helper()
	var seen []FetchRequest
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req FetchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		out := make(map[string]map[string]*float64, len(req.DonorIDs))
		for i, id := range req.DonorIDs {
			row := make(map[string]*float64, len(req.Variables))
			for _, v := range req.Variables {
				val := float64((i + 1) * (i + 1))
				row[v] = &val
			}
			out[id] = row
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}
