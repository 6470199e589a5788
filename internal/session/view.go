package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"

	"surveyexplorer/internal/crosstab"
	"surveyexplorer/internal/filters"
	"surveyexplorer/internal/metrics"
	"surveyexplorer/internal/models"
	"surveyexplorer/internal/query"
)

// View returns the rendering contract for the latest committed generation.
// Filter pills always reflect the current state.
func (s *Session) View() models.DashboardData {
	fv := s.filterView(s.state.Snapshot())

	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.committed
	if res == nil {
		return models.DashboardData{Status: string(StatusLoading), Filters: fv, Charts: []models.ChartView{}}
	}

	data := models.DashboardData{
		Generation: res.gen,
		Filters:    fv,
		Total:      res.total,
		Charts:     res.charts,
	}
	var qe *models.QueryError
	switch {
	case errors.Is(res.matrixErr, crosstab.ErrInvalidPivot):
		data.Status = string(StatusInvalidPivot)
		data.Error = res.matrixErr.Error()
	case errors.As(res.matrixErr, &qe):
		data.Status = string(StatusError)
		data.Error = qe.Message
	case res.matrixErr != nil:
		data.Status = string(StatusError)
		data.Error = res.matrixErr.Error()
	case res.matrix.Empty():
		data.Status = string(StatusEmpty)
	default:
		data.Status = string(StatusOK)
	}
	if res.totalErr != nil && data.Error == "" {
		data.Error = res.totalErr.Error()
	}
	if res.matrix != nil {
		mv := res.matrix.View(s.sorter)
		data.Crosstab = &mv
	}
	return data
}

// Token returns the persisted form of the current filter state.
func (s *Session) Token() (string, error) {
	return filters.Encode(s.state.Snapshot().Persisted())
}

// Restore applies a persisted token. Stale dimensions or values are skipped and
// returned; only a malformed token is an error.
func (s *Session) Restore(ctx context.Context, token string) ([]string, error) {
	p, err := filters.Decode(token)
	if err != nil {
		return nil, err
	}
	if err := s.loadKnownValues(ctx); err != nil {
		return nil, err
	}
	skipped := s.state.Restore(p, s)
	if len(skipped) > 0 {
		log.Warnf("session: restore skipped stale filters %v", skipped)
	}
	return skipped, nil
}

// Values lists the distinct values of dim over the whole dataset, most common first.
func (s *Session) Values(ctx context.Context, dim string) ([]models.ResultRow, error) {
	d, err := s.reg.Must(dim)
	if err != nil {
		return nil, err
	}
	pred, err := s.builder.And(query.Predicate{}, query.NotNull(dim))
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := s.exec.Count(ctx, query.Request{Predicate: pred, Dimension: d})
	metrics.ObserveQuery("values", start, err)
	if err != nil {
		return nil, err
	}
	models.SortResultRows(rows)
	return rows, nil
}

// HasValue implements filters.KnownValues from the cached value lists.
func (s *Session) HasValue(dim, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.known[dim][value]
}

func (s *Session) loadKnownValues(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.known != nil
	s.mu.Unlock()
	if loaded {
		return nil
	}
	known := make(map[string]map[string]bool)
	for _, id := range s.reg.IDs() {
		rows, err := s.Values(ctx, id)
		if err != nil {
			return fmt.Errorf("load values of %s: %w", id, err)
		}
		set := make(map[string]bool, len(rows))
		for _, r := range rows {
			set[r.Label] = true
		}
		known[id] = set
	}
	s.mu.Lock()
	s.known = known
	s.mu.Unlock()
	return nil
}

func (s *Session) filterView(snap filters.Snapshot) models.FilterView {
	fv := models.FilterView{
		Filters: make([]models.FilterPill, 0, len(snap.Entries)),
		Search:  snap.Search,
		Version: snap.Version,
	}
	for _, e := range snap.Entries {
		fv.Filters = append(fv.Filters, models.FilterPill{
			Dimension: e.Dimension,
			Label:     s.reg.Label(e.Dimension),
			Value:     e.Value,
			Origin:    string(e.Origin),
		})
	}
	if token, err := filters.Encode(snap.Persisted()); err == nil {
		fv.Token = token
	}
	return fv
}
