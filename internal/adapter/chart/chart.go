// Package chart renders analysis results as PNG images with gonum/plot.
package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/MikhalGarbuz/analyze-your-life/internal/analysis"
)

// Renderer draws heatmaps, residual plots and class-probability curves.
type Renderer struct {
	PanelWidth  vg.Length
	PanelHeight vg.Length
}

// New returns a Renderer with default panel sizes.
func New() *Renderer {
	return &Renderer{PanelWidth: 6 * vg.Inch, PanelHeight: 5 * vg.Inch}
}

var _ analysis.Renderer = (*Renderer)(nil)

// grid adapts a correlation matrix to plotter.GridXYZ. Columns are goals,
// rows are independents.
type grid struct {
	m analysis.Matrix
}

func (g grid) Dims() (c, r int) { return len(g.m.Cols), len(g.m.Rows) }

func (g grid) Z(c, r int) float64 {
	v := float64(g.m.Values[r][c])
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func (g grid) X(c int) float64 { return float64(c) }
func (g grid) Y(r int) float64 { return float64(r) }

// RenderCorrelation draws one annotated heatmap per matrix, side by side.
func (r *Renderer) RenderCorrelation(ctx context.Context, panels []analysis.Matrix) ([]byte, error) {
	if len(panels) == 0 {
		return nil, errors.New("no correlation matrices to render")
	}
	plots := make([]*plot.Plot, len(panels))
	for i, m := range panels {
		p, err := heatmap(m)
		if err != nil {
			return nil, err
		}
		plots[i] = p
	}

	img := vgimg.New(r.PanelWidth*vg.Length(len(plots)), r.PanelHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 1, Cols: len(plots), PadX: vg.Millimeter, PadY: vg.Millimeter}
	canvases := plot.Align([][]*plot.Plot{plots}, tiles, dc)
	for i, p := range plots {
		p.Draw(canvases[0][i])
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode heatmap: %w", err)
	}
	return buf.Bytes(), nil
}

func heatmap(m analysis.Matrix) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title(string(m.Method)) + " correlation"

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)
	hm := plotter.NewHeatMap(grid{m: m}, cm.Palette(255))
	hm.Min, hm.Max = -1, 1
	p.Add(hm)

	labels := plotter.XYLabels{}
	for r := range m.Rows {
		for c := range m.Cols {
			labels.XYs = append(labels.XYs, plotter.XY{X: float64(c), Y: float64(r)})
			labels.Labels = append(labels.Labels, cellText(m.Values[r][c]))
		}
	}
	lbl, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, fmt.Errorf("heatmap labels: %w", err)
	}
	for i := range lbl.TextStyle {
		lbl.TextStyle[i].XAlign = text.XCenter
		lbl.TextStyle[i].YAlign = text.YCenter
	}
	p.Add(lbl)

	p.X.Tick.Marker = names(m.Cols)
	p.Y.Tick.Marker = names(m.Rows)
	p.X.Min, p.X.Max = -0.5, float64(len(m.Cols))-0.5
	p.Y.Min, p.Y.Max = -0.5, float64(len(m.Rows))-0.5
	return p, nil
}

func cellText(n analysis.Number) string {
	f := n.Rounded()
	if math.IsNaN(f) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", f)
}

func names(ns []string) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, len(ns))
	for i, n := range ns {
		ticks[i] = plot.Tick{Value: float64(i), Label: n}
	}
	return ticks
}

// RenderRegression draws a residual plot for linear fits and class
// probability curves for ordinal fits.
func (r *Renderer) RenderRegression(ctx context.Context, result *analysis.RegressionResult) ([]byte, error) {
	var (
		p   *plot.Plot
		err error
	)
	switch result.Method {
	case analysis.MethodLinear:
		p, err = residualPlot(result)
	case analysis.MethodOrdinal:
		p, err = probabilityPlot(result)
	default:
		return nil, fmt.Errorf("no chart for method %q", result.Method)
	}
	if err != nil {
		return nil, err
	}

	w, err := p.WriterTo(r.PanelWidth, r.PanelHeight*4/5, "png")
	if err != nil {
		return nil, fmt.Errorf("encode regression chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode regression chart: %w", err)
	}
	return buf.Bytes(), nil
}

func residualPlot(result *analysis.RegressionResult) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Residuals for " + result.Target
	p.X.Label.Text = "Fitted"
	p.Y.Label.Text = "Residuals"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(result.Fitted))
	for i := range pts {
		pts[i].X = result.Fitted[i]
		pts[i].Y = result.Residuals[i]
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("residual scatter: %w", err)
	}
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(sc)

	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Color = color.RGBA{R: 220, A: 255}
	zero.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(zero)
	return p, nil
}

func probabilityPlot(result *analysis.RegressionResult) (*plot.Plot, error) {
	if len(result.Curves) == 0 {
		return nil, errors.New("ordinal result has no probability curves")
	}
	p := plot.New()
	p.Title.Text = "Class probabilities of " + result.Target
	p.X.Label.Text = result.CurveVariable
	p.Y.Label.Text = "Probability"
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	var lines []any
	for _, c := range result.Curves {
		pts := make(plotter.XYs, len(c.X))
		for i := range pts {
			pts[i].X, pts[i].Y = c.X[i], c.P[i]
		}
		lines = append(lines, fmt.Sprintf("class %g", c.Class), pts)
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return nil, fmt.Errorf("probability lines: %w", err)
	}
	return p, nil
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
