package crosstab

import (
	"math"

	"surveyexplorer/internal/models"
)

// View renders the matrix in its current row order for the rendering layer.
func (m *Matrix) View(s Sorter) models.MatrixView {
	v := models.MatrixView{
		RowDim:     m.RowDim.ID,
		ColDim:     m.ColDim.ID,
		Metric:     string(m.metric),
		SortKey:    s.Key.String(),
		SortDir:    s.Dir.String(),
		Columns:    make([]models.ColumnHeader, 0, len(m.ColValues)),
		Rows:       make([]models.MatrixRow, 0, len(m.RowValues)),
		GrandTotal: m.GrandTotal,
	}
	for _, c := range m.ColValues {
		v.Columns = append(v.Columns, models.ColumnHeader{Value: c, Total: m.ColTotal(c)})
	}
	for _, r := range m.RowValues {
		row := models.MatrixRow{Value: r, Total: m.RowTotal(r), Cells: make([]models.MatrixCell, 0, len(m.ColValues))}
		for _, c := range m.ColValues {
			intensity := m.Intensity(r, c)
			shade := ShadeFor(intensity)
			row.Cells = append(row.Cells, models.MatrixCell{
				Count:      m.Count(r, c),
				Value:      math.Round(m.Value(r, c)*100) / 100,
				Intensity:  intensity,
				Background: shade.Background,
				Foreground: shade.Foreground,
			})
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}
