package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"alarm-triage-agent/internal/application/config"
	"alarm-triage-agent/internal/domain/entity"
	"alarm-triage-agent/internal/domain/port"
)

// Sentinel errors for TriageRunner construction.
var (
	ErrNilModelProvider = errors.New("model provider cannot be nil")
	ErrNilSandbox       = errors.New("sandbox executor cannot be nil")
	ErrNilPromptBuilder = errors.New("prompt builder cannot be nil")
	ErrNilTriageConfig  = errors.New("triage config cannot be nil")
	ErrNoTools          = errors.New("at least one tool must be declared")
)

// TriageRunner drives one alarm investigation: it loops the conversation
// with the model provider, dispatches requested tool calls to the sandbox
// sequentially, and ends the run at the first terminal condition. The model
// decides when it is done; the runner enforces the iteration cap and the
// wall-clock budget.
type TriageRunner struct {
	provider port.ModelProvider
	sandbox  port.SandboxExecutor
	prompts  *PromptBuilder
	tools    []entity.Tool
	cfg      *config.TriageConfig
	logger   *zap.Logger
}

// NewTriageRunner creates a TriageRunner with the given dependencies.
// A nil logger falls back to a no-op logger.
func NewTriageRunner(
	provider port.ModelProvider,
	sandbox port.SandboxExecutor,
	prompts *PromptBuilder,
	tools []entity.Tool,
	cfg *config.TriageConfig,
	logger *zap.Logger,
) (*TriageRunner, error) {
	if provider == nil {
		return nil, ErrNilModelProvider
	}
	if sandbox == nil {
		return nil, ErrNilSandbox
	}
	if prompts == nil {
		return nil, ErrNilPromptBuilder
	}
	if cfg == nil {
		return nil, ErrNilTriageConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(tools) == 0 {
		return nil, ErrNoTools
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TriageRunner{
		provider: provider,
		sandbox:  sandbox,
		prompts:  prompts,
		tools:    tools,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Run executes the investigation loop for the alarm and returns the terminal
// result. The result is always non-nil when the investigation was started;
// a non-nil error accompanies a FAILED result.
func (r *TriageRunner) Run(
	ctx context.Context,
	alarm *entity.AlarmEvent,
	investigationID string,
) (*entity.InvestigationResult, error) {
	inv, err := entity.NewInvestigation(investigationID, alarm)
	if err != nil {
		return nil, err
	}

	conv := entity.NewConversation()
	system, err := r.prompts.BuildSystemPrompt(alarm)
	if err != nil {
		return r.fail(inv, conv, err)
	}
	trigger, err := r.prompts.BuildTriggerMessage(alarm)
	if err != nil {
		return r.fail(inv, conv, err)
	}
	userMsg, err := entity.NewMessage(entity.RoleUser, trigger)
	if err != nil {
		return r.fail(inv, conv, err)
	}
	if err := conv.AddMessage(*userMsg); err != nil {
		return r.fail(inv, conv, err)
	}

	r.logger.Info("investigation started",
		zap.String("investigation_id", investigationID),
		zap.String("alarm", alarm.Identity()),
	)

	for {
		if err := ctx.Err(); err != nil {
			return r.fail(inv, conv, err)
		}
		if inv.Elapsed() >= r.cfg.TimeBudget() {
			return r.truncate(inv, conv, fmt.Sprintf(
				"time budget of %s exhausted after %d iterations",
				r.cfg.TimeBudget(), inv.Iterations()))
		}

		if err := inv.AwaitModel(); err != nil {
			return r.fail(inv, conv, err)
		}
		reply, err := r.provider.SendMessage(ctx, system, conv.Messages(), r.tools)
		if err != nil {
			return r.fail(inv, conv, err)
		}
		if err := conv.AddMessage(*reply); err != nil {
			return r.fail(inv, conv, err)
		}

		if !reply.HasToolCalls() {
			if err := inv.Complete(reply.Content); err != nil {
				return r.fail(inv, conv, err)
			}
			r.logger.Info("investigation completed",
				zap.String("investigation_id", investigationID),
				zap.Int("iterations", inv.Iterations()),
				zap.Duration("elapsed", inv.Elapsed()),
			)
			return inv.Result(conv), nil
		}

		if err := inv.DispatchTools(); err != nil {
			return r.fail(inv, conv, err)
		}
		results := r.dispatch(ctx, inv, reply.ToolCalls)
		resultMsg, err := entity.NewToolResultMessage(results)
		if err != nil {
			return r.fail(inv, conv, err)
		}
		if err := conv.AddMessage(*resultMsg); err != nil {
			return r.fail(inv, conv, err)
		}

		if inv.Iterations() >= r.cfg.MaxIterations() {
			return r.truncate(inv, conv, fmt.Sprintf(
				"iteration cap of %d reached", r.cfg.MaxIterations()))
		}
	}
}

// dispatch executes the requested tool calls one at a time, in the order the
// model issued them, and returns one result per call in the same order. A
// call naming an unknown tool or missing its code argument produces an error
// result instead of aborting the run.
func (r *TriageRunner) dispatch(
	ctx context.Context,
	inv *entity.Investigation,
	calls []entity.ToolCall,
) []entity.ToolResult {
	results := make([]entity.ToolResult, 0, len(calls))
	for _, tc := range calls {
		results = append(results, r.dispatchOne(ctx, inv, tc))
	}
	return results
}

func (r *TriageRunner) dispatchOne(
	ctx context.Context,
	inv *entity.Investigation,
	tc entity.ToolCall,
) entity.ToolResult {
	if tc.Name != ScriptToolName {
		r.logger.Warn("model requested unknown tool",
			zap.String("investigation_id", inv.ID()),
			zap.String("tool", tc.Name),
		)
		return errorResult(tc.ID, "unknown tool: "+tc.Name)
	}

	code, _ := tc.Input["code"].(string)
	if code == "" {
		return errorResult(tc.ID, "missing required field: code")
	}

	record, err := entity.NewToolInvocation(tc.ID, tc.Name, code)
	if err != nil {
		return errorResult(tc.ID, err.Error())
	}

	execRes, err := r.sandbox.Execute(ctx, code, r.cfg.ToolTimeLimit())
	if err != nil {
		// Executor-internal fault; report it to the model like any other
		// tool failure so the investigation can continue.
		record.ErrorDetail = err.Error()
	} else {
		record.SanitizedCode = execRes.SanitizedCode
		record.RemovedImports = execRes.RemovedStatements
		record.Value = execRes.Value
		record.Output = execRes.Output
		record.ErrorDetail = execRes.ErrorDetail
		record.TimedOut = execRes.TimedOut
		record.Duration = execRes.Duration
	}
	inv.RecordInvocation(*record)

	r.logger.Debug("tool execution finished",
		zap.String("investigation_id", inv.ID()),
		zap.String("tool_id", tc.ID),
		zap.Bool("success", record.Succeeded()),
		zap.Duration("duration", record.Duration),
	)

	return entity.ToolResult{
		ToolID:  tc.ID,
		Content: record.ResultContent(),
		IsError: !record.Succeeded(),
	}
}

// errorResult builds the structured error payload fed back to the model for
// a call that never reached the sandbox.
func errorResult(toolID, detail string) entity.ToolResult {
	return entity.ToolResult{
		ToolID:  toolID,
		Content: fmt.Sprintf(`{"success":false,"error":%q}`, detail),
		IsError: true,
	}
}

func (r *TriageRunner) fail(
	inv *entity.Investigation,
	conv *entity.Conversation,
	cause error,
) (*entity.InvestigationResult, error) {
	if err := inv.Fail(cause); err != nil {
		r.logger.Error("could not record failure", zap.Error(err))
	}
	r.logger.Error("investigation failed",
		zap.String("investigation_id", inv.ID()),
		zap.Int("iterations", inv.Iterations()),
		zap.Error(cause),
	)
	return inv.Result(conv), cause
}

func (r *TriageRunner) truncate(
	inv *entity.Investigation,
	conv *entity.Conversation,
	reason string,
) (*entity.InvestigationResult, error) {
	if err := inv.Truncate(reason); err != nil {
		return r.fail(inv, conv, err)
	}
	r.logger.Warn("investigation truncated",
		zap.String("investigation_id", inv.ID()),
		zap.String("reason", reason),
		zap.Int("iterations", inv.Iterations()),
	)
	return inv.Result(conv), nil
}
