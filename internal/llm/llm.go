package llm

import (
	"context"
	"errors"
	"time"
)

// Template identifiers understood by every Invoker.
const (
	TemplateSentiment      = "sentiment"
	TemplateCategorization = "categorization"
	TemplateActions        = "actions"
	TemplateLegacy         = "legacy"
)

// Inputs is the structured payload sent alongside a prompt template.
// Values must be JSON-encodable.
type Inputs map[string]any

// Invoker abstracts the external language-model service. Implementations must be
// safe for concurrent use and keep no conversation state between calls.
type Invoker interface {
	Invoke(ctx context.Context, templateID string, inputs Inputs, timeout time.Duration) (string, error)
}

var (
	// ErrTimeout marks a call that exceeded its deadline.
	ErrTimeout = errors.New("llm timeout")
	// ErrRateLimited marks a call rejected by provider rate limiting.
	ErrRateLimited = errors.New("llm rate limited")
	// ErrUnavailable marks a transient provider-side failure (5xx).
	ErrUnavailable = errors.New("llm unavailable")
	// ErrUnknownTemplate is returned for template ids without an embedded prompt.
	ErrUnknownTemplate = errors.New("llm unknown template")
	// ErrNotImplemented is returned by the placeholder invoker.
	ErrNotImplemented = errors.New("LLM not implemented")
)

// PlaceholderInvoker is used when no provider is configured. Every call fails,
// which sends each analysis down to the deterministic fallback.
type PlaceholderInvoker struct{}

// Invoke returns ErrNotImplemented.
func (PlaceholderInvoker) Invoke(ctx context.Context, templateID string, inputs Inputs, timeout time.Duration) (string, error) {
	_ = ctx
	_ = templateID
	_ = inputs
	_ = timeout
	return "", ErrNotImplemented
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, templateID string, inputs Inputs, timeout time.Duration) (string, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, templateID string, inputs Inputs, timeout time.Duration) (string, error) {
	return f(ctx, templateID, inputs, timeout)
}
