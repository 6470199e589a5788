package api

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/labstack/echo/v4"

	"surveyexplorer/internal/crosstab"
	"surveyexplorer/internal/dimensions"
	"surveyexplorer/internal/filters"
	"surveyexplorer/internal/models"
	"surveyexplorer/internal/session"
)

// ErrDatasetLoading is returned by every route until the executor is ready.
var ErrDatasetLoading = echo.NewHTTPError(http.StatusServiceUnavailable, "dataset loading")

type Handler struct {
	sess atomic.Pointer[session.Session]
}

// NewHandler accepts a nil session; routes answer 503 until SetSession is called.
func NewHandler(sess *session.Session) *Handler {
	h := &Handler{}
	if sess != nil {
		h.sess.Store(sess)
	}
	return h
}

func (h *Handler) SetSession(sess *session.Session) {
	h.sess.Store(sess)
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/dimensions", h.GetDimensions)
	api.GET("/values/:dim", h.GetValues)

	api.GET("/filters", h.GetFilters)
	api.DELETE("/filters", h.ClearFilters)
	api.PUT("/filters/:dim", h.SetFilter)
	api.DELETE("/filters/:dim", h.RemoveFilter)
	api.POST("/filters/:dim/toggle", h.ToggleFilter)
	api.PUT("/search", h.SetSearch)

	api.GET("/state", h.GetState)
	api.POST("/state", h.RestoreState)

	api.PUT("/pivot", h.SetPivot)
	api.POST("/sort", h.Sort)
	api.GET("/view", h.GetView)
}

type valueBody struct {
	Value string `json:"value"`
}

type searchBody struct {
	Text string `json:"text"`
}

type stateBody struct {
	Token string `json:"token"`
}

type pivotBody struct {
	Row    string `json:"row"`
	Col    string `json:"col"`
	Metric string `json:"metric"`
}

// sortBody selects a column value, or the row total when RowTotal is set.
type sortBody struct {
	Column   string `json:"column"`
	RowTotal bool   `json:"row_total"`
}

// --- HELPERS ---

func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *Handler) session() (*session.Session, error) {
	s := h.sess.Load()
	if s == nil {
		return nil, ErrDatasetLoading
	}
	return s, nil
}

func badRequest(err error) error {
	if errors.Is(err, dimensions.ErrUnknownDimension) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return err
}

func (h *Handler) filters(c echo.Context, s *session.Session) error {
	return c.JSON(http.StatusOK, s.View().Filters)
}

// --- HANDLERS ---

func (h *Handler) GetDimensions(c echo.Context) error {
	s, err := h.session()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Registry().All())
}

// GetValues lists a dimension's values for dropdowns, paginated.
func (h *Handler) GetValues(c echo.Context) error {
	s, err := h.session()
	if err != nil {
		return err
	}
	rows, err := s.Values(c.Request().Context(), c.Param("dim"))
	if err != nil {
		return badRequest(err)
	}
	total := len(rows)
	limit, offset := getPaginationParams(c, total)

	if offset >= total {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"data": []models.ResultRow{}, "total": total, "limit": limit, "offset": offset,
		})
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   rows[offset:end],
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) GetFilters(c echo.Context) error {
	s, err := h.session()
	if err != nil {
		return err
	}
	return h.filters(c, s)
}

func (h *Handler) SetFilter(c echo.Context) error {
	s, err := h.session()
	if err != nil {
		return err
	}
	var body valueBody
	if err := c.Bind(&body); err != nil {
		return err
	}
	if err := s.Filters().SetValue(c.Param("dim"), body.Value); err != nil {
		return badRequest(err)
	}
	return h.filters(c, s)
}

func (h *Handler) ToggleFilter(c echo.Context) error {
	s, err := h.session()
	if err != nil {
		return err
	}
	var body valueBody
	if err := c.Bind(&body); err != nil {
		return err
	}
	if err := s.Filters().ToggleChartFilter(c.Param("dim"), body.Value); err != nil {
		return badRequest(err)
	}
	return h.filters(c, s)
}

func (h *Handler) RemoveFilter(c echo.Context) error {
	s, err := h.session()
	if err != nil {
		return err
	}
	if err := s.Filters().Remove(c.Param("dim")); err != nil {
		return badRequest(err)
	}
	return h.filters(c, s)
}

func (h *Handler) ClearFilters(c echo.Context) error {
	s, err := h.session()
	if err != nil {
		return err
	}
	s.Filters().Clear()
	return h.filters(c, s)
}

func (h *Handler) SetSearch(c echo.Context) error {
	s, err := h.session()
	if err != nil {
		return err
	}
	var body searchBody
	if err := c.Bind(&body); err != nil {
		return err
	}
	s.Filters().SetSearch(body.Text)
	return h.filters(c, s)
}

func (h *Handler) GetState(c echo.Context) error {
	s, err := h.session()
	if err != nil {
		return err
	}
	token, err := s.Token()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stateBody{Token: token})
}

// RestoreState applies a shared token. Stale entries are skipped, not rejected.
func (h *Handler) RestoreState(c echo.Context) error {
	s, err := h.session()
	if err != nil {
		return err
	}
	var body stateBody
	if err := c.Bind(&body); err != nil {
		return err
	}
	skipped, err := s.Restore(c.Request().Context(), body.Token)
	if errors.Is(err, filters.ErrMalformedToken) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	if err != nil {
		return err
	}
	if skipped == nil {
		skipped = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"filters": s.View().Filters,
		"skipped": skipped,
	})
}

// SetPivot changes dimensions (re-query) or only the metric (no re-query).
func (h *Handler) SetPivot(c echo.Context) error {
	s, err := h.session()
	if err != nil {
		return err
	}
	var body pivotBody
	if err := c.Bind(&body); err != nil {
		return err
	}
	metric, err := crosstab.ParseMetric(body.Metric)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cur := s.Pivot()
	if body.Row == "" {
		body.Row = cur.Row
	}
	if body.Col == "" {
		body.Col = cur.Col
	}
	if body.Row == cur.Row && body.Col == cur.Col {
		s.SetMetric(metric)
	} else if err := s.SetPivot(body.Row, body.Col, metric); err != nil {
		return badRequest(err)
	}
	return c.JSON(http.StatusOK, s.Pivot())
}

func (h *Handler) Sort(c echo.Context) error {
	s, err := h.session()
	if err != nil {
		return err
	}
	var body sortBody
	if err := c.Bind(&body); err != nil {
		return err
	}
	key := crosstab.RowTotalKey
	if !body.RowTotal {
		if body.Column == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "column or row_total is required")
		}
		key = crosstab.ColumnKey(body.Column)
	}
	s.SortBy(key)
	return c.JSON(http.StatusOK, s.View())
}

// GetView waits for the latest generation unless ?wait=false.
func (h *Handler) GetView(c echo.Context) error {
	s, err := h.session()
	if err != nil {
		return err
	}
	if c.QueryParam("wait") != "false" {
		if err := s.Wait(c.Request().Context()); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, s.View())
}
