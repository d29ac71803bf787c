package ai

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alarm-triage-agent/internal/domain/entity"
	"alarm-triage-agent/internal/domain/port"
)

// flakyProvider fails with scripted errors before succeeding.
type flakyProvider struct {
	errs  []error
	calls int
}

func (f *flakyProvider) SendMessage(
	_ context.Context,
	_ string,
	_ []entity.Message,
	_ []entity.Tool,
) (*entity.Message, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) {
		return nil, f.errs[idx]
	}
	msg, _ := entity.NewMessage(entity.RoleAssistant, "ok")
	return msg, nil
}

func apiError(status int) error {
	return &anthropic.Error{StatusCode: status}
}

func newTestRetrier(t *testing.T, inner port.ModelProvider, maxRetries int) (*RetryingProvider, *[]time.Duration) {
	t.Helper()
	r, err := NewRetryingProvider(inner, maxRetries, 10*time.Millisecond, nil)
	require.NoError(t, err)
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, &slept
}

func sendOnce(t *testing.T, r *RetryingProvider) (*entity.Message, error) {
	t.Helper()
	user, err := entity.NewMessage(entity.RoleUser, "investigate")
	require.NoError(t, err)
	return r.SendMessage(context.Background(), "system", []entity.Message{*user}, nil)
}

func TestRetryingProvider_RecoversFromRateLimits(t *testing.T) {
	inner := &flakyProvider{errs: []error{
		apiError(http.StatusTooManyRequests),
		apiError(http.StatusTooManyRequests),
		apiError(http.StatusTooManyRequests),
	}}
	r, slept := newTestRetrier(t, inner, 3)

	msg, err := sendOnce(t, r)
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Content)
	assert.Equal(t, 4, inner.calls)
	assert.Len(t, *slept, 3)
}

func TestRetryingProvider_BackoffGrows(t *testing.T) {
	inner := &flakyProvider{errs: []error{
		apiError(http.StatusServiceUnavailable),
		apiError(http.StatusServiceUnavailable),
	}}
	r, slept := newTestRetrier(t, inner, 3)

	_, err := sendOnce(t, r)
	require.NoError(t, err)
	require.Len(t, *slept, 2)

	// Exponential base doubles; jitter adds at most half the base again.
	first, second := (*slept)[0], (*slept)[1]
	assert.GreaterOrEqual(t, first, 10*time.Millisecond)
	assert.LessOrEqual(t, first, 15*time.Millisecond)
	assert.GreaterOrEqual(t, second, 20*time.Millisecond)
	assert.LessOrEqual(t, second, 30*time.Millisecond)
}

func TestRetryingProvider_ExhaustionWrapsLastError(t *testing.T) {
	inner := &flakyProvider{errs: []error{
		apiError(http.StatusInternalServerError),
		apiError(http.StatusInternalServerError),
		apiError(http.StatusInternalServerError),
	}}
	r, _ := newTestRetrier(t, inner, 2)

	_, err := sendOnce(t, r)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingProvider_NonTransientFailsFast(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"bad request", apiError(http.StatusBadRequest)},
		{"unauthorized", apiError(http.StatusUnauthorized)},
		{"context canceled", context.Canceled},
		{"plain error", errors.New("malformed conversation")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &flakyProvider{errs: []error{tt.err}}
			r, slept := newTestRetrier(t, inner, 3)

			_, err := sendOnce(t, r)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrRetriesExhausted)
			assert.Equal(t, 1, inner.calls, "non-transient errors must not be retried")
			assert.Empty(t, *slept)
		})
	}
}

func TestRetryingProvider_RetryHook(t *testing.T) {
	inner := &flakyProvider{errs: []error{
		apiError(http.StatusTooManyRequests),
		apiError(http.StatusServiceUnavailable),
	}}
	r, _ := newTestRetrier(t, inner, 3)

	var retries int
	r.SetRetryHook(func() { retries++ })

	_, err := sendOnce(t, r)
	require.NoError(t, err)
	assert.Equal(t, 2, retries, "hook fires once per retry, not per attempt")
}

func TestRetryingProvider_ZeroRetriesMeansSingleAttempt(t *testing.T) {
	inner := &flakyProvider{errs: []error{apiError(http.StatusTooManyRequests)}}
	r, _ := newTestRetrier(t, inner, 0)

	_, err := sendOnce(t, r)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, inner.calls)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(apiError(http.StatusRequestTimeout)))
	assert.True(t, isTransient(apiError(http.StatusTooManyRequests)))
	assert.True(t, isTransient(apiError(http.StatusBadGateway)))
	assert.True(t, isTransient(context.DeadlineExceeded))
	assert.False(t, isTransient(apiError(http.StatusForbidden)))
	assert.False(t, isTransient(context.Canceled))
	assert.False(t, isTransient(errors.New("anything else")))
}
