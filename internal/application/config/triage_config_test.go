package config

import (
	"testing"
	"time"
)

func TestDefaultTriageConfig(t *testing.T) {
	cfg := DefaultTriageConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.MaxIterations() != 100 {
		t.Errorf("MaxIterations = %d, want 100", cfg.MaxIterations())
	}
	if cfg.MaxRetries() != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries())
	}
	if cfg.AdmissionWindow() != time.Hour {
		t.Errorf("AdmissionWindow = %v, want 1h", cfg.AdmissionWindow())
	}
	if cfg.TimeBudget() >= 15*time.Minute {
		t.Errorf("TimeBudget = %v, want headroom under 15m", cfg.TimeBudget())
	}
}

func TestTriageConfig_Setters(t *testing.T) {
	cfg := DefaultTriageConfig()

	tests := []struct {
		name    string
		apply   func() error
		wantErr error
	}{
		{"valid iterations", func() error { return cfg.SetMaxIterations(50) }, nil},
		{"zero iterations", func() error { return cfg.SetMaxIterations(0) }, ErrInvalidMaxIterations},
		{"negative iterations", func() error { return cfg.SetMaxIterations(-1) }, ErrInvalidMaxIterations},
		{"valid budget", func() error { return cfg.SetTimeBudget(time.Minute) }, nil},
		{"zero budget", func() error { return cfg.SetTimeBudget(0) }, ErrInvalidTimeBudget},
		{"valid tool limit", func() error { return cfg.SetToolTimeLimit(10 * time.Second) }, nil},
		{"zero tool limit", func() error { return cfg.SetToolTimeLimit(0) }, ErrInvalidToolTimeLimit},
		{"zero retries allowed", func() error { return cfg.SetMaxRetries(0) }, nil},
		{"negative retries", func() error { return cfg.SetMaxRetries(-1) }, ErrInvalidMaxRetries},
		{"valid base delay", func() error { return cfg.SetRetryBaseDelay(time.Second) }, nil},
		{"zero base delay", func() error { return cfg.SetRetryBaseDelay(0) }, ErrInvalidRetryBaseDelay},
		{"valid window", func() error { return cfg.SetAdmissionWindow(30 * time.Minute) }, nil},
		{"zero window", func() error { return cfg.SetAdmissionWindow(0) }, ErrInvalidAdmissionWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.apply()
			if err != tt.wantErr {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTriageConfig_ValidateRejectsZeroValue(t *testing.T) {
	cfg := &TriageConfig{}
	if err := cfg.Validate(); err != ErrInvalidMaxIterations {
		t.Errorf("zero-value config should fail on iterations, got %v", err)
	}
}
