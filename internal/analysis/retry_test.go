package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"feedback-backend/internal/llm"
)

func TestClassifyInvokeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "llm timeout", err: fmt.Errorf("%w: openai request", llm.ErrTimeout), want: KindTimeout},
		{name: "context deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: KindTimeout},
		{name: "rate limited", err: fmt.Errorf("%w: openai http status 429", llm.ErrRateLimited), want: KindRateLimited},
		{name: "rate limit text", err: errors.New("provider says rate limit reached"), want: KindRateLimited},
		{name: "unavailable", err: llm.ErrUnavailable, want: KindUnknown},
		{name: "other", err: errors.New("boom"), want: KindUnknown},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyInvokeError(tt.err); got != tt.want {
				t.Fatalf("classifyInvokeError(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestInvokeWithRetry(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 1, Backoff: time.Millisecond}

	t.Run("gives up after one retry", func(t *testing.T) {
		silenceLogs(t)
		calls := 0
		inv := llm.InvokerFunc(func(context.Context, string, llm.Inputs, time.Duration) (string, error) {
			calls++
			return "", llm.ErrTimeout
		})
		_, attempts, err := invokeWithRetry(context.Background(), inv, policy, "s", llm.TemplateSentiment, nil, time.Second)
		if err == nil || err.Kind != KindTimeout {
			t.Fatalf("expected timeout stage error, got %v", err)
		}
		if calls != 2 || attempts != 2 {
			t.Fatalf("expected 2 calls, got calls=%d attempts=%d", calls, attempts)
		}
	})

	t.Run("unknown is not retried", func(t *testing.T) {
		calls := 0
		inv := llm.InvokerFunc(func(context.Context, string, llm.Inputs, time.Duration) (string, error) {
			calls++
			return "", errors.New("bad request")
		})
		_, _, err := invokeWithRetry(context.Background(), inv, policy, "s", llm.TemplateSentiment, nil, time.Second)
		if err == nil || err.Kind != KindUnknown || calls != 1 {
			t.Fatalf("expected single unknown failure, got %v after %d calls", err, calls)
		}
	})

	t.Run("cancelled during backoff", func(t *testing.T) {
		silenceLogs(t)
		ctx, cancel := context.WithCancel(context.Background())
		inv := llm.InvokerFunc(func(context.Context, string, llm.Inputs, time.Duration) (string, error) {
			cancel()
			return "", llm.ErrRateLimited
		})
		slow := RetryPolicy{MaxRetries: 1, Backoff: time.Hour}
		_, attempts, err := invokeWithRetry(ctx, inv, slow, "s", llm.TemplateSentiment, nil, time.Second)
		if err == nil || attempts != 1 {
			t.Fatalf("expected failure after one attempt, got %v attempts=%d", err, attempts)
		}
	})
}

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.delay(KindTimeout) != 300*time.Millisecond {
		t.Fatalf("unexpected timeout delay %s", p.delay(KindTimeout))
	}
	if p.delay(KindRateLimited) != 600*time.Millisecond {
		t.Fatalf("unexpected rate limit delay %s", p.delay(KindRateLimited))
	}
}

func TestSanitizeErrorKeepsValidUTF8(t *testing.T) {
	err := errors.New("x" + strings.Repeat("خطأ\n", 300))
	msg := sanitizeError(err)
	if !utf8.ValidString(msg) {
		t.Fatalf("sanitized message is not valid UTF-8: %q", msg)
	}
	if n := utf8.RuneCountInString(msg); n != 500 {
		t.Fatalf("expected 500 runes, got %d", n)
	}
	if strings.ContainsAny(msg, "\r\n") {
		t.Fatalf("expected newlines replaced, got %q", msg)
	}
}
