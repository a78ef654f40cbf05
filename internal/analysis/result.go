package analysis

import (
	"encoding/json"
	"math"

	"github.com/montanaflynn/stats"
)

// Method names a statistical procedure.
type Method string

// Supported procedures.
const (
	MethodKendall Method = "kendall"
	MethodPearson Method = "pearson"
	MethodLinear  Method = "linear"
	MethodOrdinal Method = "ordinal"
)

// Number is a reported statistic. It encodes to JSON rounded to four
// places, and to null when it is not finite.
type Number float64

// Rounded returns n rounded to four decimal places.
func (n Number) Rounded() float64 {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	r, err := stats.Round(f, 4)
	if err != nil {
		return f
	}
	return r
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(n.Rounded())
}

// Matrix holds correlation coefficients of independents (rows) against goals
// (columns).
type Matrix struct {
	Method Method     `json:"method"`
	Rows   []string   `json:"rows"`
	Cols   []string   `json:"cols"`
	Values [][]Number `json:"values"`
}

// Strength buckets the absolute size of a coefficient.
type Strength string

// Strength buckets.
const (
	StrengthVeryStrong Strength = "very strong"
	StrengthStrong     Strength = "strong"
	StrengthModerate   Strength = "moderate"
	StrengthWeak       Strength = "weak"
	StrengthNegligible Strength = "negligible"
)

// Significance buckets a p-value.
type Significance string

// Significance buckets.
const (
	SignificanceReliable    Significance = "reliable"
	SignificanceSignificant Significance = "significant"
	SignificanceBorderline  Significance = "borderline"
	SignificanceUnreliable  Significance = "unreliable"
)

// ClassifyStrength buckets |estimate|.
func ClassifyStrength(estimate float64) Strength {
	a := math.Abs(estimate)
	switch {
	case a > 1.0:
		return StrengthVeryStrong
	case a > 0.5:
		return StrengthStrong
	case a > 0.2:
		return StrengthModerate
	case a > 0.05:
		return StrengthWeak
	default:
		return StrengthNegligible
	}
}

// ClassifySignificance buckets a p-value. NaN is unreliable.
func ClassifySignificance(p float64) Significance {
	switch {
	case p < 0.01:
		return SignificanceReliable
	case p < 0.05:
		return SignificanceSignificant
	case p < 0.1:
		return SignificanceBorderline
	default:
		return SignificanceUnreliable
	}
}

// Coefficient is one fitted model term.
type Coefficient struct {
	Name         string       `json:"name"`
	Estimate     Number       `json:"estimate"`
	StdErr       Number       `json:"stdErr"`
	PValue       Number       `json:"pValue"`
	Strength     Strength     `json:"strength"`
	Significance Significance `json:"significance"`
	// Aliased marks a predictor dropped from the fit because it was constant
	// or a linear combination of the others. Its statistics are undefined.
	Aliased bool `json:"aliased,omitempty"`
}

// Threshold is a cut point between two adjacent ordinal classes, reported in
// the fitted parameterization: the first cut point, then log increments.
type Threshold struct {
	Label  string `json:"label"`
	Value  Number `json:"value"`
	PValue Number `json:"pValue"`
}

// Curve is the predicted probability of one class as a single predictor
// varies and the others stay at their mean.
type Curve struct {
	Class float64   `json:"class"`
	X     []float64 `json:"x"`
	P     []float64 `json:"p"`
}

// RegressionResult is the output of a fitted regression.
type RegressionResult struct {
	Method        Method        `json:"method"`
	Target        string        `json:"target"`
	Rows          int           `json:"rows"`
	Coefficients  []Coefficient `json:"coefficients"`
	Thresholds    []Threshold   `json:"thresholds,omitempty"`
	FitLabel      string        `json:"fitLabel"`
	Fit           Number        `json:"fit"`
	Fitted        []float64     `json:"-"`
	Residuals     []float64     `json:"-"`
	CurveVariable string        `json:"curveVariable,omitempty"`
	Curves        []Curve       `json:"curves,omitempty"`
}

func (r *RegressionResult) classify() {
	for i := range r.Coefficients {
		c := &r.Coefficients[i]
		c.Strength = ClassifyStrength(float64(c.Estimate))
		c.Significance = ClassifySignificance(float64(c.PValue))
	}
}
