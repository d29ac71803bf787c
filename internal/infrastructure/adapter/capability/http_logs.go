package capability

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"alarm-triage-agent/internal/domain/port"
)

// HTTPLogConfig holds connection parameters for the log backend.
type HTTPLogConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPLogQuerier implements port.LogQuerier against a LogsQL-style HTTP
// endpoint that streams matches as JSON lines: one object per entry with
// _time and _msg fields plus arbitrary label fields.
type HTTPLogQuerier struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPLogQuerier creates a querier for the given backend.
// A nil logger falls back to a no-op logger.
func NewHTTPLogQuerier(cfg HTTPLogConfig, logger *zap.Logger) (*HTTPLogQuerier, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("log backend URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPLogQuerier{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}, nil
}

type logLine struct {
	Time    time.Time `json:"_time"`
	Message string    `json:"_msg"`
}

// QueryLogs fetches up to limit entries matching the filter in [start, end].
func (q *HTTPLogQuerier) QueryLogs(
	ctx context.Context,
	filter string,
	start, end time.Time,
	limit int,
) ([]port.LogEntry, error) {
	params := url.Values{}
	params.Set("query", filter)
	params.Set("start", start.UTC().Format(time.RFC3339))
	params.Set("end", end.UTC().Format(time.RFC3339))
	params.Set("limit", strconv.Itoa(limit))

	endpoint := q.baseURL + "/select/logsql/query?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("log query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("log query: backend returned %s", resp.Status)
	}

	var entries []port.LogEntry
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var line logLine
		if err := json.Unmarshal(raw, &line); err != nil {
			q.logger.Warn("skipping malformed log line", zap.Error(err))
			continue
		}

		// Everything except the well-known fields becomes a label.
		var fields map[string]any
		labels := map[string]string{}
		if err := json.Unmarshal(raw, &fields); err == nil {
			for k, v := range fields {
				if k == "_time" || k == "_msg" {
					continue
				}
				if s, ok := v.(string); ok {
					labels[k] = s
				}
			}
		}

		entries = append(entries, port.LogEntry{
			Timestamp: line.Time,
			Message:   line.Message,
			Labels:    labels,
		})
		if len(entries) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading log stream: %w", err)
	}
	return entries, nil
}

var _ port.LogQuerier = (*HTTPLogQuerier)(nil)
