package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alarm-triage-agent/internal/application/config"
	"alarm-triage-agent/internal/domain/entity"
	"alarm-triage-agent/internal/domain/port"
)

// Sentinel errors for AlarmHandler construction and handling.
var (
	ErrNilAdmissionGate = errors.New("admission gate cannot be nil")
	ErrNilRunner        = errors.New("investigation runner cannot be nil")
	ErrNilEmitter       = errors.New("report emitter cannot be nil")
	// ErrAdmissionUnavailable wraps a gate backend failure. The handler fails
	// closed: no investigation runs when admission cannot be decided.
	ErrAdmissionUnavailable = errors.New("admission gate unavailable")
)

// InvestigationRunner runs one investigation to a terminal result.
type InvestigationRunner interface {
	Run(ctx context.Context, alarm *entity.AlarmEvent, investigationID string) (*entity.InvestigationResult, error)
}

// ReportEmitter persists a terminal result and sends its notification.
// It returns the stored report location.
type ReportEmitter interface {
	Emit(ctx context.Context, result *entity.InvestigationResult, alarm *entity.AlarmEvent) (string, error)
}

// TriageOutcome describes what the handler did with one alarm event:
// skipped (wrong state, duplicate, or gate failure) or investigated, with
// the terminal result and stored report location.
type TriageOutcome struct {
	Skipped         bool
	SkipReason      string
	Duplicate       bool
	InvestigationID string
	Result          *entity.InvestigationResult
	ReportLocation  string
}

// AlarmHandler is the entry point for incoming alarm events. It filters out
// non-alarming states, runs each admitted alarm through the dedup gate, and
// hands admitted alarms to the runner. Every terminal result is emitted
// exactly once.
type AlarmHandler struct {
	gate    port.AdmissionGate
	runner  InvestigationRunner
	emitter ReportEmitter
	cfg     *config.TriageConfig
	logger  *zap.Logger
	newID   func() string
}

// NewAlarmHandler creates an AlarmHandler with the given dependencies.
// A nil logger falls back to a no-op logger.
func NewAlarmHandler(
	gate port.AdmissionGate,
	runner InvestigationRunner,
	emitter ReportEmitter,
	cfg *config.TriageConfig,
	logger *zap.Logger,
) (*AlarmHandler, error) {
	if gate == nil {
		return nil, ErrNilAdmissionGate
	}
	if runner == nil {
		return nil, ErrNilRunner
	}
	if emitter == nil {
		return nil, ErrNilEmitter
	}
	if cfg == nil {
		return nil, ErrNilTriageConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlarmHandler{
		gate:    gate,
		runner:  runner,
		emitter: emitter,
		cfg:     cfg,
		logger:  logger,
		newID:   uuid.NewString,
	}, nil
}

// Handle processes one alarm event end to end.
//
// The flow:
//  1. Skip events whose state is not alarming (recoveries, insufficient data).
//  2. Ask the admission gate whether this alarm identity may be investigated
//     within the configured window. Gate failures skip the alarm.
//  3. Run the investigation to a terminal result.
//  4. Emit the result: store the report and send one notification.
//
// A skipped alarm returns a TriageOutcome with Skipped set and a nil error,
// except for gate failures which also return ErrAdmissionUnavailable.
func (h *AlarmHandler) Handle(ctx context.Context, alarm *entity.AlarmEvent) (*TriageOutcome, error) {
	if alarm == nil {
		return nil, entity.ErrNilAlarmEvent
	}

	if !alarm.IsAlarming() {
		h.logger.Info("skipping non-alarming state",
			zap.String("alarm", alarm.Identity()),
			zap.String("state", alarm.State()),
		)
		return &TriageOutcome{
			Skipped:    true,
			SkipReason: "non-alarming state: " + alarm.State(),
		}, nil
	}

	admission, err := h.gate.Admit(ctx, alarm.Identity(), h.cfg.AdmissionWindow())
	if err != nil {
		h.logger.Error("admission gate failure, skipping alarm",
			zap.String("alarm", alarm.Identity()),
			zap.Error(err),
		)
		return &TriageOutcome{
			Skipped:    true,
			SkipReason: "admission gate unavailable",
		}, fmt.Errorf("%w: %w", ErrAdmissionUnavailable, err)
	}
	if !admission.Admitted {
		h.logger.Info("skipping duplicate alarm",
			zap.String("alarm", alarm.Identity()),
			zap.Time("existing_expiry", admission.ExistingExpiry),
		)
		return &TriageOutcome{
			Skipped:    true,
			Duplicate:  true,
			SkipReason: "already investigated within window",
		}, nil
	}

	investigationID := h.newID()
	result, runErr := h.runner.Run(ctx, alarm, investigationID)
	if result == nil {
		return nil, runErr
	}

	outcome := &TriageOutcome{
		InvestigationID: investigationID,
		Result:          result,
	}

	location, emitErr := h.emitter.Emit(ctx, result, alarm)
	if emitErr != nil {
		h.logger.Error("report emission failed",
			zap.String("investigation_id", investigationID),
			zap.Error(emitErr),
		)
	}
	outcome.ReportLocation = location

	if runErr != nil {
		return outcome, runErr
	}
	return outcome, emitErr
}
