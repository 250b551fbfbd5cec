package cohort

import (
	"context"

	"github.com/pankbase/functional/pkg/pagination"
)

// Record is one donor's metadata keyed by column name. Absent values are nil.
type Record map[string]any

// DonorResult is the response of a donor filter.
type DonorResult struct {
	DonorCount int                  `json:"donor_count"`
	DonorIDs   []string             `json:"donor_ids"`
	Metadata   *pagination.Response `json:"donor_metadata"`
}

// TraitsRequest selects traits for a filtered cohort.
type TraitsRequest struct {
	Filter Criteria `json:"filter"`
	Traits []string `json:"traits"`
}

// TraitsResult is the response of a trait lookup.
type TraitsResult struct {
	DonorCount int `json:"donor_count"`
	*TraitTable
}

// TimeSeriesRequest selects one time-series table for a filtered cohort.
type TimeSeriesRequest struct {
	Filter Criteria `json:"filter"`
	Type   string   `json:"timeseries_type"`
}

// TimeSeriesResult is the response of a time-series lookup.
type TimeSeriesResult struct {
	DonorCount int `json:"donor_count"`
	*SeriesSlice
}

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Snapshot returns the currently published snapshot.
func (s *Service) Snapshot() (*Snapshot, error) {
	return s.store.View()
}

// Reload rebuilds the dataset from its sources.
func (s *Service) Reload(ctx context.Context) (Stats, error) {
	snap, err := s.store.Reload(ctx)
	if err != nil {
		return Stats{}, err
	}
	return snap.Stats(), nil
}

func (s *Service) Metadata(ctx context.Context) (Metadata, error) {
	return s.store.Describe()
}

// Donors filters the cohort and returns every matching id plus one page of
// donor metadata.
func (s *Service) Donors(ctx context.Context, c Criteria, p pagination.Params) (*DonorResult, error) {
	snap, err := s.store.View()
	if err != nil {
		return nil, err
	}
	sel, err := Filter(c, snap.Frame())
	if err != nil {
		return nil, err
	}
	start, end := p.Window(len(sel.Rows))
	records := snap.Records(sel.Rows[start:end], SourceDonor)
	return &DonorResult{
		DonorCount: sel.Count(),
		DonorIDs:   nonNil(sel.IDs),
		Metadata:   pagination.NewResponse(records, sel.Count(), p.Limit, p.Offset),
	}, nil
}

func (s *Service) Traits(ctx context.Context, req TraitsRequest) (*TraitsResult, error) {
	snap, err := s.store.View()
	if err != nil {
		return nil, err
	}
	sel, err := Filter(req.Filter, snap.Frame())
	if err != nil {
		return nil, err
	}
	tt, err := snap.Traits(sel.IDs, req.Traits)
	if err != nil {
		return nil, err
	}
	return &TraitsResult{DonorCount: len(tt.Rows), TraitTable: tt}, nil
}

func (s *Service) TimeSeries(ctx context.Context, req TimeSeriesRequest) (*TimeSeriesResult, error) {
	snap, err := s.store.View()
	if err != nil {
		return nil, err
	}
	sel, err := Filter(req.Filter, snap.Frame())
	if err != nil {
		return nil, err
	}
	key := req.Type
	if key == "" {
		key = snap.DefaultSeries()
	}
	ss, err := snap.TimeSeries(sel.IDs, key)
	if err != nil {
		return nil, err
	}
	return &TimeSeriesResult{DonorCount: len(ss.Donors), SeriesSlice: ss}, nil
}

func (s *Service) SeriesTypes(ctx context.Context) ([]SeriesType, error) {
	snap, err := s.store.View()
	if err != nil {
		return nil, err
	}
	return snap.SeriesCatalog(), nil
}

// Records renders the given rows with every column from src.
func (s *Snapshot) Records(rows []int, src Source) []Record {
	cols := s.frame.ColumnsFrom(src)
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(cols))
		for _, col := range cols {
			rec[col.Name] = cellValue(col, col.Cells[row])
		}
		out = append(out, rec)
	}
	return out
}

// DefaultSeries returns the first loaded time-series key.
func (s *Snapshot) DefaultSeries() string {
	if len(s.seriesKeys) == 0 {
		return ""
	}
	return s.seriesKeys[0]
}

func cellValue(col *Column, c Cell) any {
	if !c.Valid {
		return nil
	}
	switch col.Kind {
	case KindBoolean:
		return c.Num == 1
	case KindNumerical:
		return c.Num
	}
	return c.Text
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
