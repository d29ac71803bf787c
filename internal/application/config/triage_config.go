// Package config provides configuration types for the application layer.
package config

import (
	"errors"
	"time"
)

// Sentinel errors for TriageConfig validation.
var (
	// ErrInvalidMaxIterations is returned when the iteration cap is zero or negative.
	ErrInvalidMaxIterations = errors.New("max iterations must be positive")
	// ErrInvalidTimeBudget is returned when the wall-clock budget is zero or negative.
	ErrInvalidTimeBudget = errors.New("time budget must be positive")
	// ErrInvalidToolTimeLimit is returned when the per-execution time limit is zero or negative.
	ErrInvalidToolTimeLimit = errors.New("tool time limit must be positive")
	// ErrInvalidMaxRetries is returned when the retry count is negative.
	ErrInvalidMaxRetries = errors.New("max retries cannot be negative")
	// ErrInvalidRetryBaseDelay is returned when the retry base delay is zero or negative.
	ErrInvalidRetryBaseDelay = errors.New("retry base delay must be positive")
	// ErrInvalidAdmissionWindow is returned when the dedup window is zero or negative.
	ErrInvalidAdmissionWindow = errors.New("admission window must be positive")
)

// TriageConfig holds the operational limits for one alarm investigation:
// how many model round-trips it may take, how long it may run, how long a
// single sandboxed tool execution may take, and how model transport errors
// are retried. Use DefaultTriageConfig for production defaults.
type TriageConfig struct {
	maxIterations   int           // Model round-trips before forced truncation
	timeBudget      time.Duration // Wall-clock ceiling for the whole investigation
	toolTimeLimit   time.Duration // Wall-clock ceiling for one sandboxed execution
	maxRetries      int           // Retries per model call on transient errors
	retryBaseDelay  time.Duration // First backoff delay, doubled per attempt
	admissionWindow time.Duration // Dedup window per alarm identity
}

// DefaultTriageConfig returns a config with production defaults:
// 100 iterations, a 13 minute budget (leaving headroom under a 15 minute
// platform limit), 25 seconds per tool execution, 3 retries starting at
// 2 seconds, and a 1 hour admission window.
func DefaultTriageConfig() *TriageConfig {
	return &TriageConfig{
		maxIterations:   100,
		timeBudget:      13 * time.Minute,
		toolTimeLimit:   25 * time.Second,
		maxRetries:      3,
		retryBaseDelay:  2 * time.Second,
		admissionWindow: time.Hour,
	}
}

// MaxIterations returns the model round-trip cap before forced truncation.
func (c *TriageConfig) MaxIterations() int { return c.maxIterations }

// TimeBudget returns the wall-clock ceiling for a whole investigation.
func (c *TriageConfig) TimeBudget() time.Duration { return c.timeBudget }

// ToolTimeLimit returns the wall-clock ceiling for one sandboxed execution.
func (c *TriageConfig) ToolTimeLimit() time.Duration { return c.toolTimeLimit }

// MaxRetries returns the number of retries per model call on transient errors.
func (c *TriageConfig) MaxRetries() int { return c.maxRetries }

// RetryBaseDelay returns the first backoff delay; it doubles per attempt.
func (c *TriageConfig) RetryBaseDelay() time.Duration { return c.retryBaseDelay }

// AdmissionWindow returns the dedup window applied per alarm identity.
func (c *TriageConfig) AdmissionWindow() time.Duration { return c.admissionWindow }

// SetMaxIterations sets the model round-trip cap.
// Returns ErrInvalidMaxIterations if the cap is zero or negative.
func (c *TriageConfig) SetMaxIterations(n int) error {
	if n <= 0 {
		return ErrInvalidMaxIterations
	}
	c.maxIterations = n
	return nil
}

// SetTimeBudget sets the wall-clock ceiling for a whole investigation.
// Returns ErrInvalidTimeBudget if the duration is zero or negative.
func (c *TriageConfig) SetTimeBudget(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidTimeBudget
	}
	c.timeBudget = d
	return nil
}

// SetToolTimeLimit sets the per-execution wall-clock ceiling.
// Returns ErrInvalidToolTimeLimit if the duration is zero or negative.
func (c *TriageConfig) SetToolTimeLimit(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidToolTimeLimit
	}
	c.toolTimeLimit = d
	return nil
}

// SetMaxRetries sets the retry count per model call. Zero disables retries.
// Returns ErrInvalidMaxRetries if the count is negative.
func (c *TriageConfig) SetMaxRetries(n int) error {
	if n < 0 {
		return ErrInvalidMaxRetries
	}
	c.maxRetries = n
	return nil
}

// SetRetryBaseDelay sets the first backoff delay.
// Returns ErrInvalidRetryBaseDelay if the duration is zero or negative.
func (c *TriageConfig) SetRetryBaseDelay(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidRetryBaseDelay
	}
	c.retryBaseDelay = d
	return nil
}

// SetAdmissionWindow sets the dedup window per alarm identity.
// Returns ErrInvalidAdmissionWindow if the duration is zero or negative.
func (c *TriageConfig) SetAdmissionWindow(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidAdmissionWindow
	}
	c.admissionWindow = d
	return nil
}

// Validate checks that every limit holds a usable value.
// Returns the first validation error encountered, or nil if valid.
func (c *TriageConfig) Validate() error {
	if c.maxIterations <= 0 {
		return ErrInvalidMaxIterations
	}
	if c.timeBudget <= 0 {
		return ErrInvalidTimeBudget
	}
	if c.toolTimeLimit <= 0 {
		return ErrInvalidToolTimeLimit
	}
	if c.maxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.retryBaseDelay <= 0 {
		return ErrInvalidRetryBaseDelay
	}
	if c.admissionWindow <= 0 {
		return ErrInvalidAdmissionWindow
	}
	return nil
}
