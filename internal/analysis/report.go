package analysis

import (
	"fmt"
	"math"
	"strings"
)

func formatNumber(n Number) string {
	f := n.Rounded()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", f)
}

// Markdown renders the correlation matrices as markdown tables.
func (r *CorrelationReport) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Correlation over %d days.\n", r.Rows)
	for _, m := range r.Matrices {
		fmt.Fprintf(&b, "\n### %s\n\n", titleCase(string(m.Method)))
		b.WriteString("| |")
		for _, c := range m.Cols {
			fmt.Fprintf(&b, " %s |", c)
		}
		b.WriteString("\n|---|")
		b.WriteString(strings.Repeat("---|", len(m.Cols)))
		b.WriteString("\n")
		for i, row := range m.Rows {
			fmt.Fprintf(&b, "| %s |", row)
			for j := range m.Cols {
				fmt.Fprintf(&b, " %s |", formatNumber(m.Values[i][j]))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Markdown renders the regression summary as markdown.
func (r *RegressionResult) Markdown() string {
	var b strings.Builder
	kind := "Linear regression"
	if r.Method == MethodOrdinal {
		kind = "Ordinal logistic regression"
	}
	fmt.Fprintf(&b, "### %s of %s\n\n", kind, r.Target)
	fmt.Fprintf(&b, "Days used: %d\n\n", r.Rows)

	b.WriteString("| Term | Coef. | Std. err. | P-value | Strength | Significance |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, c := range r.Coefficients {
		name := c.Name
		if c.Aliased {
			name += " (constant or redundant, not fitted)"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			name, formatNumber(c.Estimate), formatNumber(c.StdErr), formatNumber(c.PValue), c.Strength, c.Significance)
	}

	if len(r.Thresholds) > 0 {
		b.WriteString("\n| Threshold | Value | P-value |\n|---|---|---|\n")
		for _, t := range r.Thresholds {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", t.Label, formatNumber(t.Value), formatNumber(t.PValue))
		}
	}

	fmt.Fprintf(&b, "\n%s = %s\n", r.FitLabel, formatNumber(r.Fit))
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
