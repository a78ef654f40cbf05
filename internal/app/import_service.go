package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// MaxClassLevels is the largest number of distinct integers an imported
// column may hold and still be inferred as a class parameter.
const MaxClassLevels = 10

// ImportService bulk-loads a CSV file as a new experiment.
type ImportService struct {
	experiments domain.ExperimentRepository
	parameters  domain.ParameterRepository
	entries     domain.EntryRepository
	now         func() time.Time
}

// NewImportService creates an ImportService.
func NewImportService(er domain.ExperimentRepository, pr domain.ParameterRepository, en domain.EntryRepository) *ImportService {
	return &ImportService{experiments: er, parameters: pr, entries: en, now: time.Now}
}

// ImportOptions control how CSV rows become entries.
type ImportOptions struct {
	// Goals names the columns imported as goal parameters.
	Goals []string
	// Start is the date of the first row. Empty means the last row is today.
	Start string
}

// ImportResult summarizes an import.
type ImportResult struct {
	Experiment domain.Experiment  `json:"experiment"`
	Parameters []domain.Parameter `json:"parameters"`
	Entries    int                `json:"entries"`
	FirstDay   string             `json:"firstDay"`
	LastDay    string             `json:"lastDay"`
}

// Import reads a header row followed by one row per consecutive day, infers
// each column's type and stores everything as a new experiment. Empty cells
// are left unlogged.
func (s *ImportService) Import(ctx context.Context, userID int64, name string, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, &domain.ValidationError{Field: "csv", Reason: err.Error()}
	}
	if len(records) < 2 {
		return nil, &domain.ValidationError{Field: "csv", Reason: "need a header row and at least one data row"}
	}
	header, rows := records[0], records[1:]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	for _, g := range opts.Goals {
		if !slices.Contains(header, g) {
			return nil, &domain.ValidationError{Field: "goals", Reason: fmt.Sprintf("no column named %q", g)}
		}
	}

	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if seen[h] {
			return nil, &domain.ValidationError{Field: h, Reason: "column name appears more than once"}
		}
		seen[h] = true
	}

	params := make([]domain.Parameter, len(header))
	for col, h := range header {
		role := domain.RoleIndependent
		if slices.Contains(opts.Goals, h) {
			role = domain.RoleGoal
		}
		typ, lo, hi, err := inferColumn(h, column(rows, col))
		if err != nil {
			return nil, err
		}
		p, err := domain.ValidateParameterDefinition(h, role, typ, lo, hi)
		if err != nil {
			return nil, err
		}
		params[col] = p
	}

	first, err := s.firstDay(opts.Start, len(rows))
	if err != nil {
		return nil, err
	}

	days := make([]map[string]domain.Value, len(rows))
	for i, row := range rows {
		values := make(map[string]domain.Value)
		for col, p := range params {
			raw := cell(row, col)
			if raw == "" {
				continue
			}
			v, err := domain.ValidateValue(p, raw)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
			values[p.Name] = v
		}
		days[i] = values
	}

	exp, err := s.experiments.CreateExperiment(ctx, userID, name)
	if err != nil {
		return nil, fmt.Errorf("create experiment: %w", err)
	}
	result, err := s.store(ctx, userID, exp, params, days, first)
	if err != nil {
		if derr := s.experiments.DeleteExperimentCascade(ctx, exp.ID); derr != nil {
			log.Printf("import: remove partial experiment %d: %v", exp.ID, derr)
		}
		return nil, err
	}

	log.Printf("import: user=%d experiment=%d parameters=%d entries=%d", userID, exp.ID, len(result.Parameters), result.Entries)
	return result, nil
}

func (s *ImportService) store(ctx context.Context, userID int64, exp *domain.Experiment, params []domain.Parameter, days []map[string]domain.Value, first time.Time) (*ImportResult, error) {
	result := &ImportResult{Experiment: *exp}
	for _, p := range params {
		p.ExperimentID = exp.ID
		created, err := s.parameters.CreateParameter(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("create parameter %q: %w", p.Name, err)
		}
		result.Parameters = append(result.Parameters, *created)
	}

	for i, values := range days {
		if len(values) == 0 {
			continue
		}
		day := first.AddDate(0, 0, i).Format(domain.DayLayout)
		if _, err := s.entries.UpsertDailyEntry(ctx, userID, exp.ID, day, values); err != nil {
			return nil, fmt.Errorf("store %s: %w", day, err)
		}
		result.Entries++
	}
	result.FirstDay = first.Format(domain.DayLayout)
	result.LastDay = first.AddDate(0, 0, len(days)-1).Format(domain.DayLayout)
	return result, nil
}

func (s *ImportService) firstDay(start string, rows int) (time.Time, error) {
	if start == "" {
		today := s.now().In(time.Local)
		return time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.Local).AddDate(0, 0, -(rows - 1)), nil
	}
	t, err := time.ParseInLocation(domain.DayLayout, start, time.Local)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: "start", Reason: "use the YYYY-MM-DD format"}
	}
	return t, nil
}

func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func column(rows [][]string, col int) []string {
	var out []string
	for _, row := range rows {
		if v := cell(row, col); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// inferColumn picks boolean when every value is + or -, class when every
// value is an integer with few distinct levels, numeric otherwise.
func inferColumn(name string, values []string) (domain.ParamType, *int, *int, error) {
	if len(values) == 0 {
		return "", nil, nil, &domain.ValidationError{Field: name, Reason: "column has no values"}
	}

	boolean := true
	for _, v := range values {
		if v != "+" && v != "-" {
			boolean = false
			break
		}
	}
	if boolean {
		return domain.TypeBoolean, nil, nil, nil
	}

	ints := make(map[int]bool)
	allInts := true
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return "", nil, nil, &domain.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not +, - or a number", v)}
		}
		if f != math.Trunc(f) || strings.ContainsAny(v, ".eE") {
			allInts = false
			continue
		}
		ints[int(f)] = true
	}
	if !allInts || len(ints) > MaxClassLevels {
		return domain.TypeNumeric, nil, nil, nil
	}

	levels := make([]int, 0, len(ints))
	for i := range ints {
		levels = append(levels, i)
	}
	lo, hi := slices.Min(levels), slices.Max(levels)
	return domain.TypeClass, &lo, &hi, nil
}
