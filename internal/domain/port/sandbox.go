package port

import (
	"context"
	"time"
)

// ExecutionResult is the structured outcome of one sandboxed snippet run.
// Snippet-level failures (raised errors, timeouts) are carried in ErrorDetail
// and TimedOut rather than as Go errors, so the agent loop can feed them back
// to the model as tool failures.
type ExecutionResult struct {
	// Value is the snippet's computed result (the `result` global), rendered
	// as a string; empty if the snippet set none.
	Value string
	// Output is everything the snippet printed during execution.
	Output string
	// ErrorDetail describes a snippet-level failure; empty on success.
	ErrorDetail string
	// TimedOut is true when the hard execution ceiling aborted the run.
	TimedOut bool
	// Duration is the wall-clock execution time.
	Duration time.Duration
	// RemovedStatements lists import-style statements the sanitizer stripped
	// before execution, for audit.
	RemovedStatements []string
	// SanitizedCode is the code that actually ran.
	SanitizedCode string
}

// Failed returns true if the snippet raised or timed out.
func (r *ExecutionResult) Failed() bool { return r.ErrorDetail != "" }

// SandboxExecutor runs model-supplied code against the fixed capability
// surface. It returns an error only for executor-internal faults; everything
// the snippet itself does wrong comes back inside the ExecutionResult.
type SandboxExecutor interface {
	Execute(ctx context.Context, code string, timeLimit time.Duration) (*ExecutionResult, error)
}
