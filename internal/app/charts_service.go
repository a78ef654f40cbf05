package app

import (
	"context"
	"errors"
	"time"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// MaxSeriesDays caps the length of a daily series.
const MaxSeriesDays = 366

// ChartsService encapsulates chart data retrieval use cases.
type ChartsService struct {
	experiments domain.ExperimentRepository
	parameters  domain.ParameterRepository
	entries     domain.EntryRepository
	now         func() time.Time
}

// NewChartsService creates a ChartsService backed by the given repositories.
func NewChartsService(er domain.ExperimentRepository, pr domain.ParameterRepository, en domain.EntryRepository) *ChartsService {
	return &ChartsService{experiments: er, parameters: pr, entries: en, now: time.Now}
}

// DayPoint is one calendar day of an experiment series. Values holds the
// numeric encoding of each logged parameter; unlogged parameters are nil.
type DayPoint struct {
	Day    string              `json:"day"`
	Values map[string]*float64 `json:"values"`
}

// GetDaily returns one point per day for the last days days, oldest first,
// including days without an entry.
func (s *ChartsService) GetDaily(ctx context.Context, userID, experimentID int64, days int) ([]DayPoint, error) {
	if days < 1 {
		return nil, errors.New("days must be > 0")
	}
	if days > MaxSeriesDays {
		days = MaxSeriesDays
	}
	if _, err := owned(ctx, s.experiments, userID, experimentID); err != nil {
		return nil, err
	}
	params, err := s.parameters.ListParameters(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	entries, err := s.entries.ListEntries(ctx, userID, experimentID)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]domain.DailyEntry, len(entries))
	for _, e := range entries {
		byDay[e.Date] = e
	}

	today := s.now().In(time.Local)
	points := make([]DayPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format(domain.DayLayout)
		p := DayPoint{Day: day, Values: make(map[string]*float64, len(params))}
		entry, ok := byDay[day]
		for _, param := range params {
			p.Values[param.Name] = nil
			if !ok {
				continue
			}
			if v, logged := entry.Values[param.Name]; logged {
				f := v.Float()
				p.Values[param.Name] = &f
			}
		}
		points = append(points, p)
	}
	return points, nil
}
