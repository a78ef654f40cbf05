package app

import (
	"context"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// ExperimentService encapsulates read-side experiment use cases.
type ExperimentService struct {
	experiments domain.ExperimentRepository
	parameters  domain.ParameterRepository
	entries     domain.EntryRepository
}

// NewExperimentService creates an ExperimentService backed by the given repositories.
func NewExperimentService(er domain.ExperimentRepository, pr domain.ParameterRepository, en domain.EntryRepository) *ExperimentService {
	return &ExperimentService{experiments: er, parameters: pr, entries: en}
}

// ExperimentDetail is an experiment with its parameters.
type ExperimentDetail struct {
	domain.Experiment
	Parameters []domain.Parameter `json:"parameters"`
}

// List returns the user's experiments.
func (s *ExperimentService) List(ctx context.Context, userID int64) ([]domain.Experiment, error) {
	return s.experiments.ListExperiments(ctx, userID)
}

// Get returns one of the user's experiments with its parameters.
func (s *ExperimentService) Get(ctx context.Context, userID, id int64) (*ExperimentDetail, error) {
	exp, err := owned(ctx, s.experiments, userID, id)
	if err != nil {
		return nil, err
	}
	params, err := s.parameters.ListParameters(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ExperimentDetail{Experiment: *exp, Parameters: params}, nil
}

// Entries returns the experiment's entries in date order.
func (s *ExperimentService) Entries(ctx context.Context, userID, id int64) ([]domain.DailyEntry, error) {
	if _, err := owned(ctx, s.experiments, userID, id); err != nil {
		return nil, err
	}
	return s.entries.ListEntries(ctx, userID, id)
}

// owned loads an experiment, reporting experiments of other users as missing.
func owned(ctx context.Context, repo domain.ExperimentRepository, userID, id int64) (*domain.Experiment, error) {
	exp, err := repo.GetExperiment(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp == nil || exp.UserID != userID {
		return nil, &domain.NotFoundError{Kind: "experiment", ID: id}
	}
	return exp, nil
}
