package integration

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pankbase/functional/internal/domain/association"
	"github.com/pankbase/functional/internal/domain/cohort"
)

// AnalyzeRequest is an association run whose variables come from external
// data, supplied inline or fetched from a registered source.
type AnalyzeRequest struct {
	association.AssociationRequest
	SourceName string `json:"external_source_name"`
}

// DonorList is the set of donor ids external portals can key data by.
type DonorList struct {
	Count      int      `json:"count"`
	DonorRRIDs []string `json:"donor_rrids"`
}

type Service struct {
	repo     SourceRepository
	fetcher  Fetcher
	analysis *association.Service
	store    *cohort.Store
	logger   zerolog.Logger
}

func NewService(repo SourceRepository, fetcher Fetcher, analysis *association.Service, store *cohort.Store, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		fetcher:  fetcher,
		analysis: analysis,
		store:    store,
		logger:   logger.With().Str("component", "integration").Logger(),
	}
}

func (s *Service) RegisterSource(ctx context.Context, src *Source) error {
	src.Name = strings.TrimSpace(src.Name)
	if src.Name == "" {
		return &association.InvalidRequestError{Reason: "source name is required"}
	}
	src.normalize()
	if err := s.repo.Create(ctx, src); err != nil {
		return err
	}
	s.logger.Info().Str("source", src.Name).Str("api_url", src.APIURL).Str("by", src.CreatedBy).Msg("external source registered")
	return nil
}

func (s *Service) ListSources(ctx context.Context, limit, offset int) ([]*Source, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) UnregisterSource(ctx context.Context, name string) error {
	if err := s.repo.Delete(ctx, name); err != nil {
		return err
	}
	s.logger.Info().Str("source", name).Msg("external source unregistered")
	return nil
}

// Analyze runs an association with external data. Inline data takes
// precedence over a named source.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*association.AssociationResponse, error) {
	if len(req.ExternalData) == 0 && req.SourceName == "" {
		return nil, &association.InvalidRequestError{Reason: "either external_data or external_source_name must be provided"}
	}
	if len(req.ExternalData) > 0 {
		return s.analysis.Associate(ctx, req.AssociationRequest)
	}
	if _, err := association.ParseMethod(req.Method); err != nil {
		return nil, err
	}
	snap, err := s.store.View()
	if err != nil {
		return nil, err
	}
	data, err := s.fetch(ctx, snap, req)
	if err != nil {
		return nil, err
	}
	req.ExternalData = data
	return s.analysis.AssociateSnapshot(ctx, snap, req.AssociationRequest)
}

func (s *Service) fetch(ctx context.Context, snap *cohort.Snapshot, req AnalyzeRequest) (association.ExternalData, error) {
	src, err := s.repo.GetByName(ctx, req.SourceName)
	if err != nil {
		return nil, err
	}
	sel, err := cohort.Filter(req.Filter, snap.Frame())
	if err != nil {
		return nil, err
	}

	ids := keyIDs(snap.Frame(), sel.Rows, src.IDField)
	data, err := s.fetcher.Fetch(ctx, src, FetchRequest{
		DonorIDs:  ids,
		Variables: req.Variables,
		IDField:   src.IDField,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("source", src.Name).Int("donors", len(ids)).Msg("external fetch failed")
		return nil, err
	}
	s.logger.Debug().Str("source", src.Name).Int("requested", len(ids)).Int("returned", len(data)).Msg("external data fetched")
	return data, nil
}

// keyIDs renders the selected rows in the identifier a source expects. When
// the field is not a dataset column the canonical donor ids are used. Rows
// without a value for the field are skipped.
func keyIDs(f *cohort.Frame, rows []int, field string) []string {
	col, ok := f.Column(field)
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if !ok {
			ids = append(ids, f.ID(r))
			continue
		}
		if v, present := col.Label(r); present {
			ids = append(ids, v)
		}
	}
	return ids
}

// Donors lists the canonical ids of every loaded donor.
func (s *Service) Donors(ctx context.Context) (*DonorList, error) {
	snap, err := s.store.View()
	if err != nil {
		return nil, err
	}
	ids := snap.Frame().IDs()
	return &DonorList{Count: len(ids), DonorRRIDs: ids}, nil
}

// Validate pre-checks external data against the current snapshot.
func (s *Service) Validate(ctx context.Context, data map[string]map[string]any) (*ValidationReport, error) {
	if len(data) == 0 {
		return nil, &association.InvalidRequestError{Reason: "external data is empty"}
	}
	snap, err := s.store.View()
	if err != nil {
		return nil, err
	}
	return ValidateData(snap.Frame(), data), nil
}
