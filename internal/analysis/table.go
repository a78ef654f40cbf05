// Package analysis turns logged entries into tables and decides which
// statistical procedure runs on them.
package analysis

import (
	"math"
	"sort"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// Table is a rectangular dataset: one row per day, one column per
// parameter. Missing cells hold NaN and are false in the Present mask.
type Table struct {
	Dates   []string
	Columns []string
	Types   []domain.ParamType
	cells   [][]float64
	present [][]bool
}

// Assemble builds a table from entries and the experiment's parameters.
// Rows follow ascending date, columns follow parameter order. Boolean values
// are encoded as 1 (+) and 0 (-).
func Assemble(entries []domain.DailyEntry, params []domain.Parameter) *Table {
	sorted := make([]domain.DailyEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	t := &Table{
		Dates:   make([]string, len(sorted)),
		Columns: make([]string, len(params)),
		Types:   make([]domain.ParamType, len(params)),
		cells:   make([][]float64, len(sorted)),
		present: make([][]bool, len(sorted)),
	}
	for j, p := range params {
		t.Columns[j] = p.Name
		t.Types[j] = p.Type
	}
	for i, e := range sorted {
		t.Dates[i] = e.Date
		row := make([]float64, len(params))
		mask := make([]bool, len(params))
		for j, p := range params {
			row[j] = math.NaN()
			v, ok := e.Values[p.Name]
			if !ok {
				continue
			}
			if f, ok := encode(p, v); ok {
				row[j] = f
				mask[j] = true
			}
		}
		t.cells[i] = row
		t.present[i] = mask
	}
	return t
}

func encode(p domain.Parameter, v domain.Value) (float64, bool) {
	switch p.Type {
	case domain.TypeBoolean:
		if v.Type() != domain.TypeBoolean {
			return 0, false
		}
		if v.Bool() {
			return 1, true
		}
		return 0, true
	case domain.TypeClass:
		if v.Type() != domain.TypeClass {
			return 0, false
		}
		return float64(v.Class()), true
	case domain.TypeNumeric:
		if v.Type() != domain.TypeNumeric && v.Type() != domain.TypeClass {
			return 0, false
		}
		return v.Float(), true
	}
	return 0, false
}

// Rows returns the number of days in the table.
func (t *Table) Rows() int { return len(t.Dates) }

func (t *Table) index(name string) int {
	for j, c := range t.Columns {
		if c == name {
			return j
		}
	}
	return -1
}

// Column returns a copy of the named column, NaN where missing.
func (t *Table) Column(name string) ([]float64, bool) {
	j := t.index(name)
	if j < 0 {
		return nil, false
	}
	col := make([]float64, len(t.cells))
	for i, row := range t.cells {
		col[i] = row[j]
	}
	return col, true
}

// Present reports whether the cell at row i of the named column holds a value.
func (t *Table) Present(i int, name string) bool {
	j := t.index(name)
	if j < 0 || i < 0 || i >= len(t.present) {
		return false
	}
	return t.present[i][j]
}

// CompleteRows returns the indices of rows where every named column is
// present.
func (t *Table) CompleteRows(names []string) []int {
	idx := make([]int, 0, len(names))
	for _, n := range names {
		idx = append(idx, t.index(n))
	}
	var rows []int
	for i := range t.present {
		ok := true
		for _, j := range idx {
			if j < 0 || !t.present[i][j] {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}

// Value returns the cell at row i of the named column.
func (t *Table) Value(i int, name string) (float64, bool) {
	j := t.index(name)
	if j < 0 || i < 0 || i >= len(t.cells) || !t.present[i][j] {
		return math.NaN(), false
	}
	return t.cells[i][j], true
}
