// Package entity contains the core domain entities for the alarm triage agent.
package entity

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Alarm state transition values as delivered by the monitoring service.
const (
	AlarmStateAlarm            = "ALARM"
	AlarmStateOK               = "OK"
	AlarmStateInsufficientData = "INSUFFICIENT_DATA"
)

// Sentinel errors for AlarmEvent validation.
var (
	ErrEmptyAlarmIdentity = errors.New("alarm identity cannot be empty")
	ErrEmptyAlarmState    = errors.New("alarm state cannot be empty")
	ErrZeroAlarmTimestamp = errors.New("alarm timestamp cannot be zero")
)

// AlarmEvent is the immutable inbound event that triggers an investigation.
// It carries the stable alarm identity, the state transition that fired, and
// whatever contextual metadata the monitoring service attached.
type AlarmEvent struct {
	identity  string
	state     string
	timestamp time.Time
	metadata  map[string]any
}

// NewAlarmEvent creates a validated AlarmEvent.
// The metadata map is copied defensively; nil is accepted.
func NewAlarmEvent(identity, state string, timestamp time.Time, metadata map[string]any) (*AlarmEvent, error) {
	identity = strings.TrimSpace(identity)
	state = strings.TrimSpace(state)

	if identity == "" {
		return nil, ErrEmptyAlarmIdentity
	}
	if state == "" {
		return nil, ErrEmptyAlarmState
	}
	if timestamp.IsZero() {
		return nil, ErrZeroAlarmTimestamp
	}

	copied := make(map[string]any, len(metadata))
	for k, v := range metadata {
		copied[k] = v
	}

	return &AlarmEvent{
		identity:  identity,
		state:     state,
		timestamp: timestamp,
		metadata:  copied,
	}, nil
}

// Identity returns the stable alarm identity.
func (a *AlarmEvent) Identity() string { return a.identity }

// State returns the state transition value (e.g. ALARM, OK).
func (a *AlarmEvent) State() string { return a.state }

// Timestamp returns when the alarm transitioned.
func (a *AlarmEvent) Timestamp() time.Time { return a.timestamp }

// Metadata returns a copy of the contextual metadata.
func (a *AlarmEvent) Metadata() map[string]any {
	copied := make(map[string]any, len(a.metadata))
	for k, v := range a.metadata {
		copied[k] = v
	}
	return copied
}

// MetadataValue returns a single metadata value, or nil if absent.
func (a *AlarmEvent) MetadataValue(key string) any { return a.metadata[key] }

// IsAlarming returns true if the event represents entry into the alarm state.
// Only alarming events start investigations; recoveries are skipped upstream.
func (a *AlarmEvent) IsAlarming() bool { return a.state == AlarmStateAlarm }

// ContextJSON renders the event as indented JSON for inclusion in prompts and
// reports. Rendering never fails; unserializable metadata is dropped.
func (a *AlarmEvent) ContextJSON() string {
	payload := map[string]any{
		"alarm_name": a.identity,
		"state":      a.state,
		"timestamp":  a.timestamp.UTC().Format(time.RFC3339),
		"metadata":   a.metadata,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		data, _ = json.MarshalIndent(map[string]any{
			"alarm_name": a.identity,
			"state":      a.state,
			"timestamp":  a.timestamp.UTC().Format(time.RFC3339),
		}, "", "  ")
	}
	return string(data)
}
