package association

import (
	"context"

	"github.com/pankbase/functional/internal/domain/cohort"
)

// AssociationRequest is the wire form of an association run. Traits are the
// outcomes; an empty list means every trait.
type AssociationRequest struct {
	Filter       cohort.Criteria `json:"filter"`
	Variables    []string        `json:"variables_of_interest" validate:"required,min=1,dive,required"`
	Controls     []string        `json:"control_variables" validate:"omitempty,dive,required"`
	Traits       []string        `json:"traits" validate:"omitempty,dive,required"`
	Method       string          `json:"method"`
	ExternalData ExternalData    `json:"external_data,omitempty"`
}

type AssociationResponse struct {
	*Report
	NTotalSamples     int       `json:"n_total_samples"`
	ExternalVariables []string  `json:"external_variables,omitempty"`
	MatchedDonors     int       `json:"matched_external_donors,omitempty"`
	Warnings          []Warning `json:"warnings,omitempty"`
}

type Service struct {
	store  *cohort.Store
	engine *Engine
}

func NewService(store *cohort.Store, engine *Engine) *Service {
	return &Service{store: store, engine: engine}
}

func (s *Service) Variables(ctx context.Context) (cohort.VariableCatalog, error) {
	snap, err := s.store.View()
	if err != nil {
		return cohort.VariableCatalog{}, err
	}
	return snap.Variables(), nil
}

// TraitCategories returns the grouped traits and the total trait count.
func (s *Service) TraitCategories(ctx context.Context) ([]cohort.TraitCategory, int, error) {
	snap, err := s.store.View()
	if err != nil {
		return nil, 0, err
	}
	return snap.TraitCategories(), len(snap.TraitNames()), nil
}

// Associate filters the cohort, merges any external data and runs the
// engine. The snapshot is captured once for the whole request.
func (s *Service) Associate(ctx context.Context, req AssociationRequest) (*AssociationResponse, error) {
	if _, err := ParseMethod(req.Method); err != nil {
		return nil, err
	}
	snap, err := s.store.View()
	if err != nil {
		return nil, err
	}
	return s.AssociateSnapshot(ctx, snap, req)
}

// AssociateSnapshot is Associate against a snapshot the caller already
// holds.
func (s *Service) AssociateSnapshot(ctx context.Context, snap *cohort.Snapshot, req AssociationRequest) (*AssociationResponse, error) {
	method, err := ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}

	frame := snap.Frame()
	resp := &AssociationResponse{}
	if len(req.ExternalData) > 0 {
		merged := Merge(frame, req.ExternalData)
		frame = merged.Frame
		resp.ExternalVariables = merged.Variables
		resp.MatchedDonors = merged.Matched
		resp.Warnings = merged.Warnings()
	}

	sel, err := cohort.Filter(req.Filter, frame)
	if err != nil {
		return nil, err
	}
	report, err := s.engine.Run(ctx, frame, sel.Rows, Request{
		Outcomes:  req.Traits,
		Variables: req.Variables,
		Controls:  req.Controls,
		Method:    method,
	})
	if err != nil {
		return nil, err
	}
	resp.Report = report
	resp.NTotalSamples = sel.Count()
	return resp, nil
}
