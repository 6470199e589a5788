// Package crosstab pivots two dimensions into a dense, sortable matrix.
package crosstab

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"surveyexplorer/internal/filters"
	"surveyexplorer/internal/metrics"
	"surveyexplorer/internal/models"
	"surveyexplorer/internal/query"
)

// ErrInvalidPivot is returned when the row and column dimensions are the same.
// It is a user-correctable state, not a failure.
var ErrInvalidPivot = errors.New("invalid pivot: row and column dimensions must differ")

// Executor is the analytical execution service.
type Executor interface {
	Count(ctx context.Context, req query.Request) ([]models.ResultRow, error)
	CrossCount(ctx context.Context, req query.CrossRequest) ([]models.CrosstabCell, error)
	Total(ctx context.Context, p query.Predicate) (int, error)
}

type Engine struct {
	exec    Executor
	builder *query.Builder
}

func NewEngine(exec Executor, builder *query.Builder) *Engine {
	return &Engine{exec: exec, builder: builder}
}

// Requests resolves the three queries of a crosstab: the detail cross count and
// the row and column marginal totals. Every query is restricted to records where
// both dimensions are present, so marginals agree with the detail cells.
func (e *Engine) Requests(snap filters.Snapshot, rowDim, colDim string) (query.CrossRequest, query.Request, query.Request, error) {
	var detail query.CrossRequest
	var rows, cols query.Request
	if rowDim == colDim {
		return detail, rows, cols, ErrInvalidPivot
	}
	reg := e.builder.Registry()
	row, err := reg.Must(rowDim)
	if err != nil {
		return detail, rows, cols, err
	}
	col, err := reg.Must(colDim)
	if err != nil {
		return detail, rows, cols, err
	}
	pred, err := snap.Predicate(e.builder, query.NotNull(row.ID), query.NotNull(col.ID))
	if err != nil {
		return detail, rows, cols, err
	}
	detail = query.CrossRequest{Predicate: pred, Row: row, Col: col}
	rows = query.Request{Predicate: pred, Dimension: row}
	cols = query.Request{Predicate: pred, Dimension: col}
	return detail, rows, cols, nil
}

// Build issues the detail query and both marginal queries concurrently and
// assembles the matrix once all three have resolved.
func (e *Engine) Build(ctx context.Context, snap filters.Snapshot, rowDim, colDim string, metric Metric) (*Matrix, error) {
	detailReq, rowReq, colReq, err := e.Requests(snap, rowDim, colDim)
	if err != nil {
		return nil, err
	}

	var (
		cells     []models.CrosstabCell
		rowTotals []models.ResultRow
		colTotals []models.ResultRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		var err error
		cells, err = e.exec.CrossCount(gctx, detailReq)
		metrics.ObserveQuery("crosstab_detail", start, err)
		return err
	})
	g.Go(func() error {
		start := time.Now()
		var err error
		rowTotals, err = e.exec.Count(gctx, rowReq)
		metrics.ObserveQuery("crosstab_rows", start, err)
		return err
	})
	g.Go(func() error {
		start := time.Now()
		var err error
		colTotals, err = e.exec.Count(gctx, colReq)
		metrics.ObserveQuery("crosstab_cols", start, err)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, withView(err, "crosstab")
	}

	models.SortResultRows(rowTotals)
	models.SortResultRows(colTotals)
	return Assemble(detailReq.Row, detailReq.Col, cells, rowTotals, colTotals, metric), nil
}

// withView tags executor failures with the view they belong to.
func withView(err error, view string) error {
	var qe *models.QueryError
	if errors.As(err, &qe) {
		tagged := *qe
		tagged.View = view
		return &tagged
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &models.QueryError{View: view, Message: err.Error(), Err: err}
}
