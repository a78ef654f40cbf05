package app

import (
	"context"
	"fmt"

	"github.com/montanaflynn/stats"
	"github.com/xuri/excelize/v2"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// Sheet names of an exported workbook.
const (
	EntriesSheet = "Entries"
	SummarySheet = "Summary"
)

// ExportService writes an experiment's data as a spreadsheet.
type ExportService struct {
	experiments *ExperimentService
}

// NewExportService creates an ExportService.
func NewExportService(experiments *ExperimentService) *ExportService {
	return &ExportService{experiments: experiments}
}

// Export returns an .xlsx workbook with one row per entry and a summary of
// each parameter. Boolean values are written as + and -.
func (s *ExportService) Export(ctx context.Context, userID, experimentID int64) (string, []byte, error) {
	detail, err := s.experiments.Get(ctx, userID, experimentID)
	if err != nil {
		return "", nil, err
	}
	entries, err := s.experiments.Entries(ctx, userID, experimentID)
	if err != nil {
		return "", nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", EntriesSheet); err != nil {
		return "", nil, err
	}
	if err := writeEntries(f, detail.Parameters, entries); err != nil {
		return "", nil, fmt.Errorf("write entries: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return "", nil, err
	}
	if err := writeSummary(f, detail.Parameters, entries); err != nil {
		return "", nil, fmt.Errorf("write summary: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", nil, err
	}
	return detail.Name + ".xlsx", buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeEntries(f *excelize.File, params []domain.Parameter, entries []domain.DailyEntry) error {
	header := []interface{}{"date"}
	for _, p := range params {
		header = append(header, p.Name)
	}
	if err := setRow(f, EntriesSheet, 1, header); err != nil {
		return err
	}

	for i, e := range entries {
		row := []interface{}{e.Date}
		for _, p := range params {
			v, ok := e.Values[p.Name]
			switch {
			case !ok:
				row = append(row, nil)
			case v.Type() == domain.TypeBoolean:
				row = append(row, v.String())
			default:
				row = append(row, v.Float())
			}
		}
		if err := setRow(f, EntriesSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(f *excelize.File, params []domain.Parameter, entries []domain.DailyEntry) error {
	header := []interface{}{"parameter", "role", "type", "days", "mean", "median", "std dev", "min", "max"}
	if err := setRow(f, SummarySheet, 1, header); err != nil {
		return err
	}

	for i, p := range params {
		var data stats.Float64Data
		for _, e := range entries {
			if v, ok := e.Values[p.Name]; ok {
				data = append(data, v.Float())
			}
		}
		row := []interface{}{p.Name, string(p.Role), string(p.Type), len(data)}
		if len(data) > 0 {
			s := summarize(data)
			row = append(row, s.Mean, s.Median, s.StdDev, s.Min, s.Max)
		}
		if err := setRow(f, SummarySheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

// Summary is a descriptive summary of one parameter.
type Summary struct {
	Mean, Median, StdDev, Min, Max float64
}

func summarize(data stats.Float64Data) Summary {
	var s Summary
	s.Mean, _ = data.Mean()
	s.Median, _ = data.Median()
	if len(data) > 1 {
		s.StdDev, _ = data.StandardDeviationSample()
	}
	s.Min, _ = data.Min()
	s.Max, _ = data.Max()
	for _, v := range []*float64{&s.Mean, &s.Median, &s.StdDev} {
		*v, _ = stats.Round(*v, 4)
	}
	return s
}
