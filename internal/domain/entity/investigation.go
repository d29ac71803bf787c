package entity

import (
	"errors"
	"strings"
	"time"
)

// Investigation phases and terminal statuses.
const (
	PhaseInit          = "INIT"
	PhaseAwaitingModel = "AWAITING_MODEL"
	PhaseToolDispatch  = "TOOL_DISPATCH"

	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusTruncated = "TRUNCATED"
)

// Sentinel errors for Investigation state transitions.
var (
	ErrEmptyInvestigationID = errors.New("investigation ID cannot be empty")
	ErrNilAlarmEvent        = errors.New("alarm event cannot be nil")
	ErrInvalidTransition    = errors.New("invalid investigation phase transition")
	ErrAlreadyTerminal      = errors.New("investigation already reached a terminal state")
)

// Investigation tracks the state machine for one alarm investigation:
// INIT -> AWAITING_MODEL -> (TOOL_DISPATCH -> AWAITING_MODEL)* ->
// COMPLETED | FAILED | TRUNCATED. No phase is re-entered after a terminal
// status is reached.
type Investigation struct {
	id          string
	alarm       *AlarmEvent
	phase       string
	analysis    string
	failure     error
	truncReason string
	iterations  int
	invocations []ToolInvocation
	startedAt   time.Time
	completedAt time.Time
}

// NewInvestigation creates an investigation in the INIT phase.
func NewInvestigation(id string, alarm *AlarmEvent) (*Investigation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyInvestigationID
	}
	if alarm == nil {
		return nil, ErrNilAlarmEvent
	}
	return &Investigation{
		id:          id,
		alarm:       alarm,
		phase:       PhaseInit,
		invocations: []ToolInvocation{},
		startedAt:   time.Now(),
	}, nil
}

// ID returns the investigation identifier.
func (i *Investigation) ID() string { return i.id }

// Alarm returns the triggering alarm event.
func (i *Investigation) Alarm() *AlarmEvent { return i.alarm }

// Phase returns the current phase or terminal status.
func (i *Investigation) Phase() string { return i.phase }

// Iterations returns the number of completed model round-trips.
func (i *Investigation) Iterations() int { return i.iterations }

// Invocations returns the recorded tool invocations in dispatch order.
func (i *Investigation) Invocations() []ToolInvocation {
	copied := make([]ToolInvocation, len(i.invocations))
	copy(copied, i.invocations)
	return copied
}

// StartedAt returns when the investigation began.
func (i *Investigation) StartedAt() time.Time { return i.startedAt }

// Elapsed returns the wall-clock duration of the run so far, or the final
// duration once terminal.
func (i *Investigation) Elapsed() time.Duration {
	if i.completedAt.IsZero() {
		return time.Since(i.startedAt)
	}
	return i.completedAt.Sub(i.startedAt)
}

// IsTerminal returns true once a terminal status is reached.
func (i *Investigation) IsTerminal() bool {
	switch i.phase {
	case StatusCompleted, StatusFailed, StatusTruncated:
		return true
	}
	return false
}

// AwaitModel transitions into AWAITING_MODEL. Valid from INIT (first round)
// and from TOOL_DISPATCH (subsequent rounds); the latter counts an iteration.
func (i *Investigation) AwaitModel() error {
	switch i.phase {
	case PhaseInit:
		i.phase = PhaseAwaitingModel
		return nil
	case PhaseToolDispatch:
		i.phase = PhaseAwaitingModel
		return nil
	case StatusCompleted, StatusFailed, StatusTruncated:
		return ErrAlreadyTerminal
	default:
		return ErrInvalidTransition
	}
}

// DispatchTools transitions AWAITING_MODEL -> TOOL_DISPATCH and counts one
// model round-trip.
func (i *Investigation) DispatchTools() error {
	if i.IsTerminal() {
		return ErrAlreadyTerminal
	}
	if i.phase != PhaseAwaitingModel {
		return ErrInvalidTransition
	}
	i.phase = PhaseToolDispatch
	i.iterations++
	return nil
}

// RecordInvocation appends a completed tool invocation to the audit trail.
func (i *Investigation) RecordInvocation(inv ToolInvocation) {
	i.invocations = append(i.invocations, inv)
}

// Complete records the final analysis and transitions to COMPLETED.
func (i *Investigation) Complete(analysis string) error {
	if i.IsTerminal() {
		return ErrAlreadyTerminal
	}
	i.phase = StatusCompleted
	i.analysis = analysis
	i.iterations++
	i.completedAt = time.Now()
	return nil
}

// Fail records a terminal error and transitions to FAILED.
func (i *Investigation) Fail(err error) error {
	if i.IsTerminal() {
		return ErrAlreadyTerminal
	}
	i.phase = StatusFailed
	i.failure = err
	i.completedAt = time.Now()
	return nil
}

// Truncate ends the run with partial findings, recording why the budget
// (iterations or wall clock) was exhausted.
func (i *Investigation) Truncate(reason string) error {
	if i.IsTerminal() {
		return ErrAlreadyTerminal
	}
	i.phase = StatusTruncated
	i.truncReason = reason
	i.completedAt = time.Now()
	return nil
}

// Result materializes the terminal outcome. Calling Result before a terminal
// state yields a snapshot with an empty status.
func (i *Investigation) Result(transcript *Conversation) *InvestigationResult {
	status := ""
	if i.IsTerminal() {
		status = i.phase
	}
	errDetail := ""
	if i.failure != nil {
		errDetail = i.failure.Error()
	}
	return &InvestigationResult{
		ID:              i.id,
		AlarmIdentity:   i.alarm.Identity(),
		AlarmState:      i.alarm.State(),
		Status:          status,
		Analysis:        i.analysis,
		ErrorDetail:     errDetail,
		TruncatedReason: i.truncReason,
		Transcript:      transcript,
		Invocations:     i.Invocations(),
		Iterations:      i.iterations,
		Elapsed:         i.Elapsed(),
		StartedAt:       i.startedAt,
		CompletedAt:     i.completedAt,
	}
}

// InvestigationResult is the terminal outcome of one investigation, handed to
// the report emitter and then owned by external storage and notification.
type InvestigationResult struct {
	ID              string
	AlarmIdentity   string
	AlarmState      string
	Status          string
	Analysis        string
	ErrorDetail     string
	TruncatedReason string
	Transcript      *Conversation
	Invocations     []ToolInvocation
	Iterations      int
	Elapsed         time.Duration
	StartedAt       time.Time
	CompletedAt     time.Time
}

// IsCompleted returns true for a COMPLETED outcome.
func (r *InvestigationResult) IsCompleted() bool { return r.Status == StatusCompleted }

// HasAnalysis returns true if a usable analysis text was produced.
func (r *InvestigationResult) HasAnalysis() bool {
	return strings.TrimSpace(r.Analysis) != ""
}
