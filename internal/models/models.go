package models

import (
	"fmt"
	"sort"
)

// Dimension is a categorical column available for filtering or pivoting.
type Dimension struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	MultiValued bool   `json:"multi_valued"`
	Searchable  bool   `json:"searchable,omitempty"`
}

// ResultRow is one bucket of a single-dimension aggregation.
type ResultRow struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// SortResultRows orders rows by count descending, then label ascending. This is
// the marginal order every executor agrees on.
func SortResultRows(rows []ResultRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Label < rows[j].Label
	})
}

// CrosstabCell is one non-zero (row, col) bucket of a detail crosstab query.
type CrosstabCell struct {
	RowValue string `json:"row_value"`
	ColValue string `json:"col_value"`
	Count    int    `json:"count"`
}

// QueryError is a failure reported by the analytical execution service.
type QueryError struct {
	View    string `json:"view"`
	SQL     string `json:"sql,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *QueryError) Error() string {
	if e.View == "" {
		return fmt.Sprintf("query failed: %s", e.Message)
	}
	return fmt.Sprintf("query failed (%s): %s", e.View, e.Message)
}

func (e *QueryError) Unwrap() error { return e.Err }

// --- RENDERING CONTRACT ---

type DashboardData struct {
	Generation uint64      `json:"generation"`
	Status     string      `json:"status"`
	Error      string      `json:"error,omitempty"`
	Filters    FilterView  `json:"filters"`
	Total      int         `json:"total"`
	Crosstab   *MatrixView `json:"crosstab,omitempty"`
	Charts     []ChartView `json:"charts"`
}

type FilterPill struct {
	Dimension string `json:"dimension"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	Origin    string `json:"origin"`
}

type FilterView struct {
	Filters []FilterPill `json:"filters"`
	Search  string       `json:"search,omitempty"`
	Token   string       `json:"token"`
	Version uint64       `json:"version"`
}

type ChartView struct {
	Dimension string      `json:"dimension"`
	Label     string      `json:"label"`
	Active    string      `json:"active,omitempty"`
	Rows      []ResultRow `json:"rows"`
	Error     string      `json:"error,omitempty"`
}

type MatrixView struct {
	RowDim     string         `json:"row_dim"`
	ColDim     string         `json:"col_dim"`
	Metric     string         `json:"metric"`
	SortKey    string         `json:"sort_key"`
	SortDir    string         `json:"sort_dir"`
	Columns    []ColumnHeader `json:"columns"`
	Rows       []MatrixRow    `json:"rows"`
	GrandTotal int            `json:"grand_total"`
}

type ColumnHeader struct {
	Value string `json:"value"`
	Total int    `json:"total"`
}

type MatrixRow struct {
	Value string       `json:"value"`
	Total int          `json:"total"`
	Cells []MatrixCell `json:"cells"`
}

type MatrixCell struct {
	Count      int     `json:"count"`
	Value      float64 `json:"value"`
	Intensity  float64 `json:"intensity"`
	Background string  `json:"background"`
	Foreground string  `json:"foreground"`
}
