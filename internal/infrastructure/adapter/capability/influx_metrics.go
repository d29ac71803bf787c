// Package capability implements the read-only query ports the sandbox
// exposes to investigation scripts: metrics, logs, and resource state.
package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"alarm-triage-agent/internal/domain/port"
)

// InfluxConfig holds connection parameters for the metrics backend.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxMetricQuerier implements port.MetricQuerier over InfluxDB 2.x.
// Scripts may pass either a full Flux pipeline (anything containing a
// from() source) or a bare measurement name, which gets the standard
// range-and-filter pipeline built around it.
type InfluxMetricQuerier struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	bucket   string
	logger   *zap.Logger
}

// NewInfluxMetricQuerier creates a querier for the given backend.
// A nil logger falls back to a no-op logger.
func NewInfluxMetricQuerier(cfg InfluxConfig, logger *zap.Logger) (*InfluxMetricQuerier, error) {
	if cfg.URL == "" {
		return nil, errors.New("influx URL is required")
	}
	if cfg.Org == "" {
		return nil, errors.New("influx org is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("influx bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxMetricQuerier{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
		logger:   logger,
	}, nil
}

// Close releases the underlying HTTP client.
func (q *InfluxMetricQuerier) Close() { q.client.Close() }

// QueryMetrics runs the query over [start, end] and flattens the result
// table into metric points.
func (q *InfluxMetricQuerier) QueryMetrics(
	ctx context.Context,
	query string,
	start, end time.Time,
) ([]port.MetricPoint, error) {
	flux := q.buildFlux(query, start, end)
	q.logger.Debug("running metrics query", zap.String("flux", flux))

	result, err := q.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("metrics query: %w", err)
	}

	var points []port.MetricPoint
	for result.Next() {
		record := result.Record()
		value, ok := record.Value().(float64)
		if !ok {
			continue
		}
		points = append(points, port.MetricPoint{
			Timestamp: record.Time(),
			Value:     value,
			Field:     record.Field(),
			Tags:      recordTags(record.Values()),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("reading metrics result: %w", err)
	}
	return points, nil
}

// buildFlux wraps a bare measurement name in the standard pipeline; full
// Flux queries pass through untouched.
func (q *InfluxMetricQuerier) buildFlux(query string, start, end time.Time) string {
	if strings.Contains(query, "from(") {
		return query
	}
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q)
  |> sort(columns: ["_time"], desc: false)`,
		q.bucket,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
		query,
	)
}

// recordTags keeps the user-facing tag columns, dropping Flux bookkeeping.
func recordTags(values map[string]any) map[string]string {
	tags := map[string]string{}
	for k, v := range values {
		if strings.HasPrefix(k, "_") || k == "result" || k == "table" {
			continue
		}
		if s, ok := v.(string); ok {
			tags[k] = s
		}
	}
	return tags
}

var _ port.MetricQuerier = (*InfluxMetricQuerier)(nil)
