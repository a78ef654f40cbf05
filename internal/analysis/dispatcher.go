package analysis

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// Row-count thresholds for correlation method selection.
const (
	MinCorrelationRows = 10
	PearsonFromRows    = 20
	KendallBelowRows   = 35
)

// CorrelationRequest asks for the goal-vs-independent coefficients of one
// method. Pairs are computed on rows where both cells are present.
type CorrelationRequest struct {
	Table        *Table
	Goals        []string
	Independents []string
	Method       Method
}

// RegressionRequest is a complete-case design: Y has one value per row of X
// and X has one column per predictor.
type RegressionRequest struct {
	Method     Method
	Target     string
	Predictors []string
	Y          []float64
	X          [][]float64
}

// Statistics fits models. Implementations never see missing cells in a
// RegressionRequest.
type Statistics interface {
	Correlate(ctx context.Context, req CorrelationRequest) (*Matrix, error)
	Regress(ctx context.Context, req RegressionRequest) (*RegressionResult, error)
}

// Renderer draws analysis results as PNG images.
type Renderer interface {
	RenderCorrelation(ctx context.Context, panels []Matrix) ([]byte, error)
	RenderRegression(ctx context.Context, result *RegressionResult) ([]byte, error)
}

// Options tune the dispatcher.
type Options struct {
	// SquaredTerms adds a squared column for each non-boolean predictor of a
	// linear regression.
	SquaredTerms bool
}

// CorrelationReport is the outcome of a correlation request.
type CorrelationReport struct {
	Rows     int      `json:"rows"`
	Methods  []Method `json:"methods"`
	Matrices []Matrix `json:"matrices"`
	Chart    []byte   `json:"chart,omitempty"`
}

// RegressionReport is the outcome of a regression request.
type RegressionReport struct {
	Result *RegressionResult `json:"result"`
	Chart  []byte            `json:"chart,omitempty"`
}

// Dispatcher selects a statistical procedure for a table and forwards it to
// the statistics and rendering collaborators.
type Dispatcher struct {
	stats   Statistics
	render  Renderer
	metrics domain.Metrics
	opts    Options
}

// NewDispatcher creates a Dispatcher. A nil metrics recorder discards
// measurements.
func NewDispatcher(stats Statistics, render Renderer, metrics domain.Metrics, opts Options) *Dispatcher {
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	return &Dispatcher{stats: stats, render: render, metrics: metrics, opts: opts}
}

// SelectCorrelationMethods returns the procedures to run for n days of data.
func SelectCorrelationMethods(n int) ([]Method, error) {
	switch {
	case n < MinCorrelationRows:
		return nil, &domain.InsufficientDataError{
			Reason: fmt.Sprintf("at least %d days are needed for correlation", MinCorrelationRows),
			Rows:   n,
		}
	case n < PearsonFromRows:
		return []Method{MethodKendall}, nil
	case n < KendallBelowRows:
		return []Method{MethodKendall, MethodPearson}, nil
	default:
		return []Method{MethodPearson}, nil
	}
}

// SelectRegressionMethod picks linear regression for numeric targets and
// ordinal logistic regression for boolean and class targets.
func SelectRegressionMethod(target domain.Parameter) Method {
	switch target.Type {
	case domain.TypeNumeric:
		return MethodLinear
	default:
		return MethodOrdinal
	}
}

// Correlate runs every method selected for the table's row count.
func (d *Dispatcher) Correlate(ctx context.Context, t *Table, params []domain.Parameter) (*CorrelationReport, error) {
	methods, err := SelectCorrelationMethods(t.Rows())
	if err != nil {
		return nil, err
	}
	goals, independents := domain.SplitRoles(params)
	if len(goals) == 0 {
		return nil, &domain.InsufficientDataError{Reason: "no goal parameters", Rows: t.Rows()}
	}
	if len(independents) == 0 {
		return nil, &domain.InsufficientDataError{Reason: "correlation also needs at least one independent parameter to compare the goals with", Rows: t.Rows()}
	}

	report := &CorrelationReport{Rows: t.Rows(), Methods: methods}
	for _, m := range methods {
		matrix, err := d.stats.Correlate(ctx, CorrelationRequest{
			Table:        t,
			Goals:        names(goals),
			Independents: names(independents),
			Method:       m,
		})
		if err != nil {
			return nil, fmt.Errorf("%s correlation: %w", m, err)
		}
		report.Matrices = append(report.Matrices, *matrix)
		d.metrics.AnalysisDispatched(ctx, "correlation", string(m))
	}

	chart, err := d.render.RenderCorrelation(ctx, report.Matrices)
	if err != nil {
		return nil, fmt.Errorf("render correlation: %w", err)
	}
	report.Chart = chart
	log.Printf("analysis: correlation rows=%d methods=%v", t.Rows(), methods)
	return report, nil
}

// Regress fits target against every other column. Rows with a missing cell
// in any used column are dropped before fitting.
func (d *Dispatcher) Regress(ctx context.Context, t *Table, params []domain.Parameter, target string) (*RegressionReport, error) {
	goals, independents := domain.SplitRoles(params)
	if len(goals) == 0 {
		return nil, &domain.InsufficientDataError{Reason: "no goal parameters", Rows: t.Rows()}
	}
	if len(independents) == 0 {
		return nil, &domain.InsufficientDataError{Reason: "no independent parameters", Rows: t.Rows()}
	}
	tp, ok := domain.FindParameter(params, target)
	if !ok || !tp.IsGoal() {
		return nil, &domain.NotFoundError{Kind: "goal parameter", ID: tp.ID, Name: target}
	}

	method := SelectRegressionMethod(tp)
	req := d.designMatrix(t, params, tp, method)

	minRows := len(req.Predictors) + 2
	if method == MethodOrdinal {
		if classes := distinct(req.Y); classes < 2 {
			return nil, &domain.InsufficientDataError{
				Reason: fmt.Sprintf("target %q has a single observed class", target),
				Rows:   len(req.Y),
			}
		}
	}
	if len(req.Y) < minRows {
		return nil, &domain.InsufficientDataError{
			Reason: fmt.Sprintf("%d complete days are needed to fit %d predictors", minRows, len(req.Predictors)),
			Rows:   len(req.Y),
		}
	}

	result, err := d.stats.Regress(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s regression: %w", method, err)
	}
	result.classify()
	d.metrics.AnalysisDispatched(ctx, "regression", string(method))

	chart, err := d.render.RenderRegression(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("render regression: %w", err)
	}
	log.Printf("analysis: %s regression target=%s rows=%d", method, target, result.Rows)
	return &RegressionReport{Result: result, Chart: chart}, nil
}

func (d *Dispatcher) designMatrix(t *Table, params []domain.Parameter, target domain.Parameter, method Method) RegressionRequest {
	var predictors []domain.Parameter
	for _, p := range params {
		if p.Name != target.Name {
			predictors = append(predictors, p)
		}
	}

	used := make([]string, 0, len(predictors)+1)
	used = append(used, target.Name)
	req := RegressionRequest{Method: method, Target: target.Name}
	for _, p := range predictors {
		used = append(used, p.Name)
		req.Predictors = append(req.Predictors, p.Name)
	}
	squared := d.opts.SquaredTerms && method == MethodLinear
	if squared {
		for _, p := range predictors {
			if p.Type != domain.TypeBoolean {
				req.Predictors = append(req.Predictors, p.Name+"_squared")
			}
		}
	}

	for _, i := range t.CompleteRows(used) {
		y, _ := t.Value(i, target.Name)
		row := make([]float64, 0, len(req.Predictors))
		for _, p := range predictors {
			v, _ := t.Value(i, p.Name)
			row = append(row, v)
		}
		if squared {
			for _, p := range predictors {
				if p.Type != domain.TypeBoolean {
					v, _ := t.Value(i, p.Name)
					row = append(row, v*v)
				}
			}
		}
		req.Y = append(req.Y, y)
		req.X = append(req.X, row)
	}
	return req
}

func names(params []domain.Parameter) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name
	}
	return out
}

func distinct(xs []float64) int {
	seen := make(map[float64]struct{}, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			seen[x] = struct{}{}
		}
	}
	return len(seen)
}
