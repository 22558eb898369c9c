package analysis

import (
	"context"
	"fmt"
	"time"

	"feedback-backend/internal/llm"
	"feedback-backend/internal/shared/telemetry"
)

const defaultRetryBackoff = 300 * time.Millisecond

// RetryPolicy controls stage-level retries of transient failures.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryPolicy retries once after 300ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 1, Backoff: defaultRetryBackoff}
}

func (p RetryPolicy) delay(kind ErrorKind) time.Duration {
	d := p.Backoff
	if kind == KindRateLimited {
		d *= 2
	}
	return d
}

// invokeWithRetry calls the invoker and retries Timeout and RateLimited failures up
// to MaxRetries times. It returns the raw response and the number of attempts.
func invokeWithRetry(ctx context.Context, inv llm.Invoker, policy RetryPolicy, stage, templateID string, inputs llm.Inputs, timeout time.Duration) (string, int, *StageError) {
	attempts := 0
	for {
		attempts++
		raw, err := inv.Invoke(ctx, templateID, inputs, timeout)
		if err == nil {
			return raw, attempts, nil
		}
		kind := classifyInvokeError(err)
		if !retryable(kind) || attempts > policy.MaxRetries {
			return "", attempts, newStageError(stage, kind, err)
		}

		delay := policy.delay(kind)
		telemetry.Warn("analysis.stage.retry", map[string]any{
			"stage":   stage,
			"attempt": attempts,
			"kind":    string(kind),
			"delayMs": delay.Milliseconds(),
			"error":   sanitizeError(err),
		})
		if waitErr := sleepCtx(ctx, delay); waitErr != nil {
			return "", attempts, newStageError(stage, KindTimeout, fmt.Errorf("retry backoff: %w", waitErr))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
