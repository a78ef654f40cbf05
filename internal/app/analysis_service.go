package app

import (
	"context"
	"fmt"

	"github.com/MikhalGarbuz/analyze-your-life/internal/analysis"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// AnalysisService loads an experiment's data and hands it to the dispatcher.
type AnalysisService struct {
	experiments domain.ExperimentRepository
	parameters  domain.ParameterRepository
	entries     domain.EntryRepository
	dispatcher  *analysis.Dispatcher
}

// NewAnalysisService creates an AnalysisService.
func NewAnalysisService(er domain.ExperimentRepository, pr domain.ParameterRepository, en domain.EntryRepository, d *analysis.Dispatcher) *AnalysisService {
	return &AnalysisService{experiments: er, parameters: pr, entries: en, dispatcher: d}
}

// Table assembles the experiment's entries into a day-by-parameter table.
func (s *AnalysisService) Table(ctx context.Context, userID, experimentID int64) (*analysis.Table, []domain.Parameter, error) {
	if _, err := owned(ctx, s.experiments, userID, experimentID); err != nil {
		return nil, nil, err
	}
	params, err := s.parameters.ListParameters(ctx, experimentID)
	if err != nil {
		return nil, nil, fmt.Errorf("list parameters: %w", err)
	}
	entries, err := s.entries.ListEntries(ctx, userID, experimentID)
	if err != nil {
		return nil, nil, fmt.Errorf("list entries: %w", err)
	}
	return analysis.Assemble(entries, params), params, nil
}

// Correlate runs the correlation procedure on an experiment.
func (s *AnalysisService) Correlate(ctx context.Context, userID, experimentID int64) (*analysis.CorrelationReport, error) {
	t, params, err := s.Table(ctx, userID, experimentID)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.Correlate(ctx, t, params)
}

// Regress fits the goal parameter targetID against the experiment's other
// columns.
func (s *AnalysisService) Regress(ctx context.Context, userID, experimentID, targetID int64) (*analysis.RegressionReport, error) {
	t, params, err := s.Table(ctx, userID, experimentID)
	if err != nil {
		return nil, err
	}
	var target *domain.Parameter
	for i := range params {
		if params[i].ID == targetID {
			target = &params[i]
		}
	}
	if target == nil || !target.IsGoal() {
		return nil, &domain.NotFoundError{Kind: "goal parameter", ID: targetID}
	}
	return s.dispatcher.Regress(ctx, t, params, target.Name)
}
