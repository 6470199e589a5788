package crosstab

import "fmt"

// Metric selects how a cell's raw count is presented.
type Metric string

const (
	MetricCount  Metric = "count"
	MetricRowPct Metric = "row_pct"
	MetricColPct Metric = "col_pct"
)

func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", MetricCount:
		return MetricCount, nil
	case MetricRowPct, MetricColPct:
		return Metric(s), nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}
