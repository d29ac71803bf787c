package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"alarm-triage-agent/internal/domain/port"
)

// HTTPResourceConfig holds connection parameters for the inventory backend.
type HTTPResourceConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPResourceDescriber implements port.ResourceDescriber against an
// inventory HTTP API exposing GET /api/v1/resources/{kind}/{name}.
type HTTPResourceDescriber struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPResourceDescriber creates a describer for the given backend.
// A nil logger falls back to a no-op logger.
func NewHTTPResourceDescriber(cfg HTTPResourceConfig, logger *zap.Logger) (*HTTPResourceDescriber, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("resource backend URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPResourceDescriber{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}, nil
}

// DescribeResource fetches the current state of one named resource.
func (d *HTTPResourceDescriber) DescribeResource(
	ctx context.Context,
	kind, name string,
) (map[string]any, error) {
	if kind == "" || name == "" {
		return nil, errors.New("resource kind and name are required")
	}

	endpoint := fmt.Sprintf("%s/api/v1/resources/%s/%s",
		d.baseURL, url.PathEscape(kind), url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("describe resource: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("resource %s/%s not found", kind, name)
	default:
		return nil, fmt.Errorf("describe resource: backend returned %s", resp.Status)
	}

	var desc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, fmt.Errorf("decoding resource description: %w", err)
	}
	return desc, nil
}

var _ port.ResourceDescriber = (*HTTPResourceDescriber)(nil)
