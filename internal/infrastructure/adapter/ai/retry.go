package ai

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"alarm-triage-agent/internal/domain/entity"
	"alarm-triage-agent/internal/domain/port"
)

// ErrRetriesExhausted wraps the last transient error once every attempt has
// been used up.
var ErrRetriesExhausted = errors.New("model call retries exhausted")

// RetryingProvider decorates a ModelProvider with bounded retries on
// transient transport errors: rate limits, overload responses, and network
// timeouts. Non-transient errors (bad requests, auth failures) pass through
// on the first attempt. Backoff is exponential with jitter.
type RetryingProvider struct {
	inner      port.ModelProvider
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	onRetry    func()
}

// SetRetryHook registers a callback invoked once per retry attempt.
// Used to record retry counts in the metric set.
func (r *RetryingProvider) SetRetryHook(hook func()) {
	r.onRetry = hook
}

// NewRetryingProvider wraps inner with up to maxRetries retries, the first
// backoff starting at baseDelay. A nil logger falls back to a no-op logger.
func NewRetryingProvider(
	inner port.ModelProvider,
	maxRetries int,
	baseDelay time.Duration,
	logger *zap.Logger,
) (*RetryingProvider, error) {
	if inner == nil {
		return nil, errors.New("inner provider cannot be nil")
	}
	if maxRetries < 0 {
		return nil, errors.New("max retries cannot be negative")
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingProvider{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
		sleep:      sleepContext,
	}, nil
}

// SendMessage forwards to the inner provider, retrying transient failures.
func (r *RetryingProvider) SendMessage(
	ctx context.Context,
	system string,
	messages []entity.Message,
	tools []entity.Tool,
) (*entity.Message, error) {
	var lastErr error
	attempts := r.maxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if r.onRetry != nil {
				r.onRetry()
			}
			delay := r.backoff(attempt)
			r.logger.Warn("retrying model call",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", attempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := r.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		reply, err := r.inner.SendMessage(ctx, system, messages, tools)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !isTransient(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

// backoff returns the delay before the given retry attempt (1-based):
// baseDelay doubled per attempt, with up to half the delay added as jitter.
func (r *RetryingProvider) backoff(attempt int) time.Duration {
	delay := r.baseDelay << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}

// isTransient classifies an error as worth retrying. API status codes 408,
// 429, and 5xx are transient, as are network timeouts. Context cancellation
// is never retried.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusRequestTimeout:
			return true
		case apierr.StatusCode == http.StatusTooManyRequests:
			return true
		case apierr.StatusCode >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ port.ModelProvider = (*RetryingProvider)(nil)
