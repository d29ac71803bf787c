package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"go.uber.org/zap"

	"alarm-triage-agent/internal/domain/port"
	"alarm-triage-agent/internal/domain/sanitize"
)

// ErrNilRegistry is returned when the executor is built without a registry.
var ErrNilRegistry = errors.New("capability registry cannot be nil")

const timeLimitReason = "execution time limit exceeded"

// fileOptions relaxes Starlark toward scripting: while loops, top-level
// control flow, reassignment, and recursion are all permitted. Scripts are
// written by a model that thinks in Python.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// StarlarkExecutor implements the SandboxExecutor port. Each Execute call
// sanitizes the snippet, runs it on a fresh interpreter thread against the
// registry's capability builtins, and captures prints, the `result` global,
// and any failure. Snippet failures never surface as Go errors.
type StarlarkExecutor struct {
	registry *Registry
	logger   *zap.Logger
	observe  func(succeeded bool)
}

// SetObserver registers a callback invoked once per Execute call with
// whether the snippet ran without a failure. Used to record execution
// outcomes in the metric set.
func (e *StarlarkExecutor) SetObserver(observe func(succeeded bool)) {
	e.observe = observe
}

// NewStarlarkExecutor creates an executor over the registry.
// A nil logger falls back to a no-op logger.
func NewStarlarkExecutor(registry *Registry, logger *zap.Logger) (*StarlarkExecutor, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StarlarkExecutor{registry: registry, logger: logger}, nil
}

// Execute runs one snippet under the given wall-clock ceiling.
func (e *StarlarkExecutor) Execute(
	ctx context.Context,
	code string,
	timeLimit time.Duration,
) (result *port.ExecutionResult, err error) {
	san := sanitize.Sanitize(code)

	var output strings.Builder
	if n := len(san.Removed); n > 0 {
		fmt.Fprintf(&output, "note: removed %d import statement(s) before execution; the environment pre-binds all permitted names\n", n)
	}

	result = &port.ExecutionResult{
		SanitizedCode:     san.Cleaned,
		RemovedStatements: san.Removed,
	}

	// Registered before the recover defer so the observed outcome includes
	// interpreter panics.
	defer func() {
		if e.observe != nil {
			e.observe(!result.Failed())
		}
	}()

	thread := &starlark.Thread{
		Name: "investigation",
		Print: func(_ *starlark.Thread, msg string) {
			output.WriteString(msg)
			output.WriteByte('\n')
		},
	}

	// The ceiling and caller cancellation both abort through thread.Cancel;
	// the interpreter checks the flag at loop back-edges and builtin calls.
	timer := time.AfterFunc(timeLimit, func() { thread.Cancel(timeLimitReason) })
	defer timer.Stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("caller context canceled")
		case <-done:
		}
	}()

	// A pathological snippet can panic the interpreter; keep that inside
	// the result rather than taking the worker down.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("interpreter panic", zap.Any("panic", r))
			result.Output = output.String()
			result.ErrorDetail = fmt.Sprintf("interpreter panic: %v", r)
		}
	}()

	start := time.Now()
	globals, execErr := starlark.ExecFileOptions(fileOptions, thread, "investigation.star", san.Cleaned, e.registry.Predeclared(ctx))
	result.Duration = time.Since(start)
	result.Output = output.String()

	if execErr != nil {
		result.ErrorDetail = renderError(execErr)
		if strings.Contains(execErr.Error(), timeLimitReason) {
			result.TimedOut = true
			result.ErrorDetail = fmt.Sprintf("execution exceeded the %s time limit", timeLimit)
		}
		e.logger.Debug("snippet failed",
			zap.String("error", result.ErrorDetail),
			zap.Bool("timed_out", result.TimedOut),
			zap.Duration("duration", result.Duration),
		)
		return result, nil
	}

	if value, ok := globals["result"]; ok {
		result.Value = renderValue(value)
	}
	return result, nil
}

// renderError prefers the Starlark backtrace so the model sees where its
// script failed.
func renderError(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Backtrace()
	}
	return err.Error()
}

// renderValue renders the `result` global for the wire. Strings come back
// unquoted; everything else uses its Starlark literal form.
func renderValue(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

var _ port.SandboxExecutor = (*StarlarkExecutor)(nil)
