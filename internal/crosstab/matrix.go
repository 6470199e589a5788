package crosstab

import (
	"surveyexplorer/internal/models"
)

type cellKey struct {
	row, col string
}

// Matrix is a dense crosstab assembled from sparse detail cells and the two
// marginal totals. Metric values are derived from raw counts on demand.
type Matrix struct {
	RowDim models.Dimension
	ColDim models.Dimension

	// RowValues is the current display order; Sorter rewrites it.
	RowValues []string
	ColValues []string

	RowTotals  map[string]int
	ColTotals  map[string]int
	GrandTotal int

	baseRows []string // marginal order, the input of every sort
	cells    map[cellKey]int
	metric   Metric
	maxValue float64
}

// Assemble builds a Matrix. Row and column values are exactly the keys of the
// marginal results in their given order; cells outside them are dropped and
// missing pairs count as zero.
func Assemble(rowDim, colDim models.Dimension, cells []models.CrosstabCell, rowTotals, colTotals []models.ResultRow, metric Metric) *Matrix {
	m := &Matrix{
		RowDim:    rowDim,
		ColDim:    colDim,
		RowValues: make([]string, 0, len(rowTotals)),
		ColValues: make([]string, 0, len(colTotals)),
		RowTotals: make(map[string]int, len(rowTotals)),
		ColTotals: make(map[string]int, len(colTotals)),
		cells:     make(map[cellKey]int, len(cells)),
	}
	for _, r := range rowTotals {
		if _, dup := m.RowTotals[r.Label]; dup {
			continue
		}
		m.RowValues = append(m.RowValues, r.Label)
		m.RowTotals[r.Label] = r.Count
		m.GrandTotal += r.Count
	}
	for _, c := range colTotals {
		if _, dup := m.ColTotals[c.Label]; dup {
			continue
		}
		m.ColValues = append(m.ColValues, c.Label)
		m.ColTotals[c.Label] = c.Count
	}
	for _, c := range cells {
		_, okRow := m.RowTotals[c.RowValue]
		_, okCol := m.ColTotals[c.ColValue]
		if !okRow || !okCol {
			continue
		}
		m.cells[cellKey{c.RowValue, c.ColValue}] += c.Count
	}
	m.baseRows = append([]string(nil), m.RowValues...)
	m.SetMetric(metric)
	return m
}

func (m *Matrix) Metric() Metric { return m.metric }

// SetMetric switches the presentation metric and recomputes the heatmap scale.
func (m *Matrix) SetMetric(metric Metric) {
	if metric == "" {
		metric = MetricCount
	}
	m.metric = metric
	m.maxValue = 0
	for _, r := range m.baseRows {
		for _, c := range m.ColValues {
			if v := m.Value(r, c); v > m.maxValue {
				m.maxValue = v
			}
		}
	}
}

func (m *Matrix) Count(row, col string) int { return m.cells[cellKey{row, col}] }

func (m *Matrix) RowTotal(row string) int { return m.RowTotals[row] }

func (m *Matrix) ColTotal(col string) int { return m.ColTotals[col] }

// Value returns the metric value of a cell.
func (m *Matrix) Value(row, col string) float64 {
	n := float64(m.Count(row, col))
	switch m.metric {
	case MetricRowPct:
		return percent(n, m.RowTotals[row])
	case MetricColPct:
		return percent(n, m.ColTotals[col])
	}
	return n
}

func (m *Matrix) MaxValue() float64 { return m.maxValue }

func (m *Matrix) Intensity(row, col string) float64 {
	return Intensity(m.Value(row, col), m.maxValue)
}

// Empty reports a valid matrix with no matching records.
func (m *Matrix) Empty() bool {
	return len(m.RowValues) == 0 || len(m.ColValues) == 0
}

func percent(n float64, total int) float64 {
	if total == 0 {
		return 0
	}
	return n / float64(total) * 100
}
