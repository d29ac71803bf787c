package port

import (
	"context"
	"time"
)

// The capability ports are the read-only operations the sandbox binds into
// its evaluation environment. No capability may mutate external state;
// enforcing which resources a query may touch is the deployment environment's
// access-control boundary, not the engine's.

// LogEntry is a single log record returned by a log query.
type LogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// LogQuerier fetches log entries matching a filter in a time range.
type LogQuerier interface {
	QueryLogs(ctx context.Context, filter string, start, end time.Time, limit int) ([]LogEntry, error)
}

// MetricPoint is one sample of a metric series.
type MetricPoint struct {
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Field     string            `json:"field,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// MetricQuerier fetches a metric series for a query in a time range.
type MetricQuerier interface {
	QueryMetrics(ctx context.Context, query string, start, end time.Time) ([]MetricPoint, error)
}

// ResourceDescriber fetches the configuration of a named monitored resource.
type ResourceDescriber interface {
	DescribeResource(ctx context.Context, kind, name string) (map[string]any, error)
}
