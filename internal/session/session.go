// Package session wires filter state, the crosstab engine and the dependent
// chart views into one event -> mutation -> recompute pipeline.
//
// Every filter mutation or pivot change issues a new generation. A generation
// captures an immutable snapshot of the filters and pivot, queries every view,
// and is committed only if no newer generation was issued in the meantime.
// Stale results are discarded silently; in-flight requests are not aborted.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"surveyexplorer/internal/crosstab"
	"surveyexplorer/internal/dimensions"
	"surveyexplorer/internal/filters"
	"surveyexplorer/internal/metrics"
	"surveyexplorer/internal/models"
	"surveyexplorer/internal/query"
)

type Status string

const (
	StatusLoading      Status = "loading"
	StatusOK           Status = "ok"
	StatusEmpty        Status = "empty"
	StatusInvalidPivot Status = "invalid_pivot"
	StatusError        Status = "error"
)

// Pivot is the crosstab selection.
type Pivot struct {
	Row    string          `json:"row"`
	Col    string          `json:"col"`
	Metric crosstab.Metric `json:"metric"`
}

// result is everything one generation produced.
type result struct {
	gen       uint64
	snap      filters.Snapshot
	pivot     Pivot
	matrix    *crosstab.Matrix
	matrixErr error
	total     int
	totalErr  error
	charts    []models.ChartView
}

type Session struct {
	reg     *dimensions.Registry
	builder *query.Builder
	exec    crosstab.Executor
	engine  *crosstab.Engine
	state   *filters.State
	cfg     *config
	baseCtx context.Context

	mu        sync.Mutex
	pivot     Pivot
	sorter    crosstab.Sorter
	issued    uint64
	committed *result
	done      chan struct{}
	known     map[string]map[string]bool

	unsubscribe func()
	discarded   func(gen uint64)
}

// New creates a session with empty filter state. Every filter mutation triggers
// a refresh on ctx; cancel ctx to stop background work.
func New(ctx context.Context, exec crosstab.Executor, reg *dimensions.Registry, opts ...Option) (*Session, error) {
	cfg := applyOptions(opts)
	for _, d := range cfg.chartDims {
		if _, err := reg.Must(d); err != nil {
			return nil, err
		}
	}
	builder := query.NewBuilder(reg)
	s := &Session{
		reg:     reg,
		builder: builder,
		exec:    exec,
		engine:  crosstab.NewEngine(exec, builder),
		state:   filters.New(reg),
		cfg:     cfg,
		baseCtx: ctx,
		sorter:  crosstab.NewSorter(),
		done:    make(chan struct{}),
	}
	if err := s.setPivot(cfg.pivot); err != nil {
		return nil, err
	}
	s.unsubscribe = s.state.Subscribe(func(snap filters.Snapshot) {
		s.issue(snap)
	})
	return s, nil
}

func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Session) Filters() *filters.State { return s.state }

func (s *Session) Registry() *dimensions.Registry { return s.reg }

// Refresh issues a new generation for the current state and returns its number.
func (s *Session) Refresh() uint64 {
	return s.issue(s.state.Snapshot())
}

// Wait blocks until the latest issued generation has been committed.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetPivot changes the crosstab dimensions and refreshes. Equal dimensions are
// accepted and reported as an invalid pivot in the view.
func (s *Session) SetPivot(row, col string, metric crosstab.Metric) error {
	if err := s.setPivot(Pivot{Row: row, Col: col, Metric: metric}); err != nil {
		return err
	}
	s.Refresh()
	return nil
}

func (s *Session) setPivot(p Pivot) error {
	if _, err := s.reg.Must(p.Row); err != nil {
		return err
	}
	if _, err := s.reg.Must(p.Col); err != nil {
		return err
	}
	if p.Metric == "" {
		p.Metric = crosstab.MetricCount
	}
	s.mu.Lock()
	s.pivot = p
	s.mu.Unlock()
	return nil
}

// SetMetric switches the metric of the current matrix without re-querying.
func (s *Session) SetMetric(metric crosstab.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pivot.Metric = metric
	if s.committed != nil && s.committed.matrix != nil {
		s.committed.matrix.SetMetric(metric)
		s.sorter.Apply(s.committed.matrix)
	}
}

// SortBy applies a sort click to the current matrix without re-querying.
func (s *Session) SortBy(key crosstab.SortKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sorter.Click(key)
	if s.committed != nil && s.committed.matrix != nil {
		s.sorter.Apply(s.committed.matrix)
	}
}

func (s *Session) Pivot() Pivot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pivot
}

func (s *Session) issue(snap filters.Snapshot) uint64 {
	s.mu.Lock()
	s.issued++
	gen := s.issued
	pivot := s.pivot
	select {
	case <-s.done:
		s.done = make(chan struct{})
	default:
	}
	s.mu.Unlock()

	metrics.GenerationIssued()
	log.Debugf("session: generation %d issued (filters v%d, pivot %s x %s)", gen, snap.Version, pivot.Row, pivot.Col)
	go s.run(gen, snap, pivot)
	return gen
}

func (s *Session) run(gen uint64, snap filters.Snapshot, pivot Pivot) {
	start := time.Now()
	res := s.compute(s.baseCtx, gen, snap, pivot)
	s.commit(res)
	log.Debugf("session: generation %d resolved in %v", gen, time.Since(start))
}

// compute queries every view of one generation. A failing view records its
// error and never aborts its siblings.
func (s *Session) compute(ctx context.Context, gen uint64, snap filters.Snapshot, pivot Pivot) *result {
	res := &result{gen: gen, snap: snap, pivot: pivot, charts: make([]models.ChartView, len(s.cfg.chartDims))}

	var g errgroup.Group
	if s.cfg.parallel > 0 {
		g.SetLimit(s.cfg.parallel)
	}
	g.Go(func() error {
		res.matrix, res.matrixErr = s.engine.Build(ctx, snap, pivot.Row, pivot.Col, pivot.Metric)
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		pred, err := snap.Predicate(s.builder)
		if err == nil {
			res.total, err = s.exec.Total(ctx, pred)
		}
		metrics.ObserveQuery("total", start, err)
		res.totalErr = err
		return nil
	})
	for i, dim := range s.cfg.chartDims {
		g.Go(func() error {
			res.charts[i] = s.chart(ctx, snap, dim)
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// chart counts the values of dim under every filter except the one on dim
// itself, so the active bar can be clicked again to toggle it off.
func (s *Session) chart(ctx context.Context, snap filters.Snapshot, dim string) models.ChartView {
	d, _ := s.reg.Lookup(dim)
	view := models.ChartView{Dimension: dim, Label: d.Label, Rows: []models.ResultRow{}}
	view.Active, _ = snap.Value(dim)

	pred, err := snap.Without(dim).Predicate(s.builder, query.NotNull(dim))
	if err != nil {
		view.Error = err.Error()
		return view
	}
	start := time.Now()
	rows, err := s.exec.Count(ctx, query.Request{Predicate: pred, Dimension: d, Limit: s.cfg.chartLimit})
	metrics.ObserveQuery("chart", start, err)
	if err != nil {
		log.Warnf("session: chart %s failed: %v", dim, err)
		view.Error = err.Error()
		return view
	}
	models.SortResultRows(rows)
	view.Rows = rows
	return view
}

func (s *Session) commit(res *result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res.gen != s.issued {
		metrics.GenerationStale()
		log.Debugf("session: generation %d discarded, latest is %d", res.gen, s.issued)
		if s.discarded != nil {
			s.discarded(res.gen)
		}
		return
	}
	if res.matrix != nil {
		// A metric switch may have happened while the generation was in flight.
		res.matrix.SetMetric(s.pivot.Metric)
		s.sorter = crosstab.NewSorter()
		s.sorter.Apply(res.matrix)
	}
	if res.matrixErr != nil && !errors.Is(res.matrixErr, crosstab.ErrInvalidPivot) {
		log.Errorf("session: generation %d crosstab failed: %v", res.gen, res.matrixErr)
	}
	s.committed = res
	close(s.done)
}
