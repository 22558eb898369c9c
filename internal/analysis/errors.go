package analysis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"feedback-backend/internal/llm"
)

var (
	// ErrPipelineFatal means the staged pipeline produced no usable result and the
	// next tier must run.
	ErrPipelineFatal = errors.New("pipeline fatal")
	// ErrNoContent means the normalized text was empty.
	ErrNoContent = errors.New("no content")
	// ErrTierExhausted is only reported when a panic escaped every tier.
	ErrTierExhausted = errors.New("fallback tiers exhausted")
)

// ErrorKind classifies a stage failure.
type ErrorKind string

const (
	KindTimeout              ErrorKind = "timeout"
	KindRateLimited          ErrorKind = "rate_limited"
	KindInvalidResponseShape ErrorKind = "invalid_response_shape"
	KindUnknown              ErrorKind = "unknown"
)

// StageError is a failure local to one stage.
type StageError struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage %s: %s", e.Stage, e.Kind, e.Message)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) entry() ErrorEntry {
	return ErrorEntry{Stage: e.Stage, Kind: e.Kind, Message: e.Message}
}

func newStageError(stage string, kind ErrorKind, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Message: sanitizeError(err), Err: err}
}

func invalidShape(stage string, err error) *StageError {
	return newStageError(stage, KindInvalidResponseShape, err)
}

// classifyInvokeError maps an LLM collaborator error onto a stage error kind.
func classifyInvokeError(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, llm.ErrRateLimited) {
		return KindRateLimited
	}
	if errors.Is(err, llm.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "http status 429") {
		return KindRateLimited
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return KindTimeout
	}
	return KindUnknown
}

func retryable(kind ErrorKind) bool {
	return kind == KindTimeout || kind == KindRateLimited
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	return truncateRunes(msg, maxLen)
}
