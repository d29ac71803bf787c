// Package sandbox runs model-supplied investigation scripts inside an
// embedded Starlark interpreter. The interpreter sees only the capability
// builtins bound by the Registry; there is no filesystem, network, or
// process access from script code.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/invopop/jsonschema"
	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.uber.org/zap"

	"alarm-triage-agent/internal/application/usecase"
	"alarm-triage-agent/internal/domain/entity"
	"alarm-triage-agent/internal/domain/port"
)

// Sentinel errors for Registry construction.
var (
	ErrNilLogQuerier       = errors.New("log querier cannot be nil")
	ErrNilMetricQuerier    = errors.New("metric querier cannot be nil")
	ErrNilResourceDescrber = errors.New("resource describer cannot be nil")
)

const (
	defaultLogLookback    = 30 * time.Minute
	defaultMetricLookback = 2 * time.Hour
	defaultLogLimit       = 100
	maxLogLimit           = 1000
)

// ScriptInput is the wire shape of the investigation_script tool arguments.
type ScriptInput struct {
	Code string `json:"code" jsonschema_description:"The investigation script to execute. query_logs, query_metrics, describe_resource, and the json module are pre-bound; assign findings to a variable named result."`
}

// Registry binds the read-only capability ports into the Starlark
// environment and declares the script tool to the model.
type Registry struct {
	logs      port.LogQuerier
	metrics   port.MetricQuerier
	resources port.ResourceDescriber
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistry creates a Registry over the three capability ports.
// A nil logger falls back to a no-op logger.
func NewRegistry(
	logs port.LogQuerier,
	metrics port.MetricQuerier,
	resources port.ResourceDescriber,
	logger *zap.Logger,
) (*Registry, error) {
	if logs == nil {
		return nil, ErrNilLogQuerier
	}
	if metrics == nil {
		return nil, ErrNilMetricQuerier
	}
	if resources == nil {
		return nil, ErrNilResourceDescrber
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logs:      logs,
		metrics:   metrics,
		resources: resources,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// ScriptTool returns the tool declaration for the script executor.
func (r *Registry) ScriptTool() (*entity.Tool, error) {
	tool, err := entity.NewTool(
		usecase.ScriptToolName,
		"Execute an investigation script against the monitoring backends. "+
			"The environment pre-binds query_logs(filter, minutes=30, limit=100), "+
			"query_metrics(query, minutes=120), describe_resource(kind, name), and the json module. "+
			"Assign findings to a variable named result; everything printed is also returned.",
	)
	if err != nil {
		return nil, err
	}
	if err := tool.AddInputSchema(reflectSchema(ScriptInput{}), []string{"code"}); err != nil {
		return nil, err
	}
	return tool, nil
}

// reflectSchema generates the properties map for a tool input struct.
func reflectSchema(v any) map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(v)

	properties := map[string]any{}
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		properties[pair.Key] = pair.Value
	}
	return properties
}

// Predeclared builds the global environment for one script execution. The
// context threads through every capability call so the execution ceiling
// also bounds backend queries.
func (r *Registry) Predeclared(ctx context.Context) starlark.StringDict {
	return starlark.StringDict{
		"query_logs":        starlark.NewBuiltin("query_logs", r.queryLogs(ctx)),
		"query_metrics":     starlark.NewBuiltin("query_metrics", r.queryMetrics(ctx)),
		"describe_resource": starlark.NewBuiltin("describe_resource", r.describeResource(ctx)),
		"json":              json.Module,
	}
}

type builtinFn = func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

func (r *Registry) queryLogs(ctx context.Context) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var filter string
		minutes := int(defaultLogLookback.Minutes())
		limit := defaultLogLimit
		if err := starlark.UnpackArgs(b.Name(), args, kwargs,
			"filter", &filter, "minutes?", &minutes, "limit?", &limit); err != nil {
			return nil, err
		}
		if minutes <= 0 {
			return nil, fmt.Errorf("%s: minutes must be positive", b.Name())
		}
		if limit <= 0 || limit > maxLogLimit {
			limit = defaultLogLimit
		}

		end := r.now()
		start := end.Add(-time.Duration(minutes) * time.Minute)
		entries, err := r.logs.QueryLogs(ctx, filter, start, end, limit)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}

		list := make([]starlark.Value, 0, len(entries))
		for _, e := range entries {
			list = append(list, mapToStarlark(map[string]any{
				"timestamp": e.Timestamp.UTC().Format(time.RFC3339),
				"message":   e.Message,
				"labels":    stringMapToAny(e.Labels),
			}))
		}
		return starlark.NewList(list), nil
	}
}

func (r *Registry) queryMetrics(ctx context.Context) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var query string
		minutes := int(defaultMetricLookback.Minutes())
		if err := starlark.UnpackArgs(b.Name(), args, kwargs,
			"query", &query, "minutes?", &minutes); err != nil {
			return nil, err
		}
		if minutes <= 0 {
			return nil, fmt.Errorf("%s: minutes must be positive", b.Name())
		}

		end := r.now()
		start := end.Add(-time.Duration(minutes) * time.Minute)
		points, err := r.metrics.QueryMetrics(ctx, query, start, end)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}

		list := make([]starlark.Value, 0, len(points))
		for _, p := range points {
			list = append(list, mapToStarlark(map[string]any{
				"timestamp": p.Timestamp.UTC().Format(time.RFC3339),
				"value":     p.Value,
				"field":     p.Field,
				"tags":      stringMapToAny(p.Tags),
			}))
		}
		return starlark.NewList(list), nil
	}
}

func (r *Registry) describeResource(ctx context.Context) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var kind, name string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "kind", &kind, "name", &name); err != nil {
			return nil, err
		}

		desc, err := r.resources.DescribeResource(ctx, kind, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return mapToStarlark(desc), nil
	}
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// mapToStarlark converts a Go map to a Starlark dict with sorted keys so
// script output is deterministic.
func mapToStarlark(m map[string]any) *starlark.Dict {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dict := starlark.NewDict(len(m))
	for _, k := range keys {
		_ = dict.SetKey(starlark.String(k), anyToStarlark(m[k]))
	}
	return dict
}

// anyToStarlark converts plain Go values to their Starlark counterparts.
// Unknown types fall back to their string rendering.
func anyToStarlark(v any) starlark.Value {
	switch val := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(val)
	case string:
		return starlark.String(val)
	case int:
		return starlark.MakeInt(val)
	case int64:
		return starlark.MakeInt64(val)
	case float64:
		return starlark.Float(val)
	case time.Time:
		return starlark.String(val.UTC().Format(time.RFC3339))
	case map[string]any:
		return mapToStarlark(val)
	case []any:
		list := make([]starlark.Value, 0, len(val))
		for _, item := range val {
			list = append(list, anyToStarlark(item))
		}
		return starlark.NewList(list)
	default:
		return starlark.String(fmt.Sprint(val))
	}
}
