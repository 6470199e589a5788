package session

import "surveyexplorer/internal/crosstab"

// Option configures a Session.
type Option func(*config)

type config struct {
	chartDims  []string
	chartLimit int
	pivot      Pivot
	parallel   int
}

// WithChartDimensions selects the dimensions that get a bar chart view.
func WithChartDimensions(dims ...string) Option {
	return func(c *config) { c.chartDims = dims }
}

// WithChartLimit caps the bars per chart; 0 shows every value.
func WithChartLimit(n int) Option {
	return func(c *config) { c.chartLimit = n }
}

// WithPivot sets the initial crosstab dimensions and metric.
func WithPivot(row, col string, metric crosstab.Metric) Option {
	return func(c *config) { c.pivot = Pivot{Row: row, Col: col, Metric: metric} }
}

// WithParallelViews bounds how many views of one generation query at once;
// n <= 0 means no bound.
func WithParallelViews(n int) Option {
	return func(c *config) { c.parallel = n }
}

func applyOptions(opts []Option) *config {
	cfg := &config{
		chartDims:  []string{"role", "region", "industry", "org_size"},
		chartLimit: 15,
		pivot:      Pivot{Row: "role", Col: "region", Metric: crosstab.MetricCount},
		parallel:   8,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
