package entity

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewAlarmEvent_Validation(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		identity  string
		state     string
		timestamp time.Time
		wantErr   error
	}{
		{
			name:      "valid alarming event",
			identity:  "lambda-errors",
			state:     AlarmStateAlarm,
			timestamp: now,
		},
		{
			name:      "valid recovery event",
			identity:  "lambda-errors",
			state:     AlarmStateOK,
			timestamp: now,
		},
		{
			name:      "empty identity rejected",
			identity:  "",
			state:     AlarmStateAlarm,
			timestamp: now,
			wantErr:   ErrEmptyAlarmIdentity,
		},
		{
			name:      "whitespace identity rejected",
			identity:  "   ",
			state:     AlarmStateAlarm,
			timestamp: now,
			wantErr:   ErrEmptyAlarmIdentity,
		},
		{
			name:      "empty state rejected",
			identity:  "lambda-errors",
			state:     "",
			timestamp: now,
			wantErr:   ErrEmptyAlarmState,
		},
		{
			name:      "zero timestamp rejected",
			identity:  "lambda-errors",
			state:     AlarmStateAlarm,
			timestamp: time.Time{},
			wantErr:   ErrZeroAlarmTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := NewAlarmEvent(tt.identity, tt.state, tt.timestamp, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if event.Identity() != tt.identity {
				t.Errorf("identity = %q, want %q", event.Identity(), tt.identity)
			}
		})
	}
}

func TestAlarmEvent_IsAlarming(t *testing.T) {
	now := time.Now()

	alarming, err := NewAlarmEvent("disk-full", AlarmStateAlarm, now, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !alarming.IsAlarming() {
		t.Error("ALARM state should be alarming")
	}

	recovered, err := NewAlarmEvent("disk-full", AlarmStateOK, now, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recovered.IsAlarming() {
		t.Error("OK state should not be alarming")
	}
}

func TestAlarmEvent_MetadataIsCopied(t *testing.T) {
	meta := map[string]any{"region": "us-east-1"}
	event, err := NewAlarmEvent("api-latency", AlarmStateAlarm, time.Now(), meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	meta["region"] = "mutated"
	if event.MetadataValue("region") != "us-east-1" {
		t.Error("metadata should be copied on construction")
	}

	out := event.Metadata()
	out["region"] = "mutated-again"
	if event.MetadataValue("region") != "us-east-1" {
		t.Error("metadata accessor should return a copy")
	}
}

func TestAlarmEvent_ContextJSON(t *testing.T) {
	event, err := NewAlarmEvent("api-latency", AlarmStateAlarm, time.Now(), map[string]any{
		"threshold": 0.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := event.ContextJSON()
	for _, want := range []string{`"alarm_name": "api-latency"`, `"state": "ALARM"`, `"threshold": 0.5`} {
		if !strings.Contains(ctx, want) {
			t.Errorf("ContextJSON missing %q:\n%s", want, ctx)
		}
	}
}
