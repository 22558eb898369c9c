package analysis

import (
	"context"
	"time"
	"unicode/utf8"

	"feedback-backend/internal/llm"
)

// maxPromptRunes bounds the text sent to any single stage.
const maxPromptRunes = 4000

// Stage is one unit of the pipeline. It reads what it needs from state, makes one
// logical call to the language model (plus at most one retry), and returns a
// validated value or a StageError. Execute must not mutate state.
type Stage[T any] interface {
	Name() string
	Execute(ctx context.Context, state *State, timeout time.Duration) StageResult[T]
}

// StageResult is either a value with confidence or an error.
type StageResult[T any] struct {
	Value      T
	Confidence float64
	Attempts   int
	Err        *StageError
}

// OK reports whether the stage produced a value.
func (r StageResult[T]) OK() bool {
	return r.Err == nil
}

func stageOK[T any](v T, confidence float64, attempts int) StageResult[T] {
	return StageResult[T]{Value: v, Confidence: confidence, Attempts: attempts}
}

func stageFailed[T any](err *StageError, attempts int) StageResult[T] {
	return StageResult[T]{Err: err, Attempts: attempts}
}

// stageCall is shared plumbing for the three stages.
type stageCall struct {
	invoker llm.Invoker
	retry   RetryPolicy
}

func (c stageCall) run(ctx context.Context, stage, templateID string, inputs llm.Inputs, timeout time.Duration) (string, int, *StageError) {
	return invokeWithRetry(ctx, c.invoker, c.retry, stage, templateID, inputs, timeout)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

func sentimentContext(s *Sentiment) map[string]any {
	if s == nil {
		return nil
	}
	return map[string]any{
		"score":        s.Score,
		"emotionLabel": s.EmotionLabel,
		"intensity":    s.Intensity,
		"confidence":   s.Confidence,
	}
}

func categorizationContext(c *Categorization) map[string]any {
	if c == nil {
		return nil
	}
	return map[string]any{
		"primaryCategory":     c.PrimaryCategory,
		"secondaryCategories": c.SecondaryCategories,
		"urgency":             c.Urgency,
		"requiresAction":      c.RequiresAction,
		"customerType":        c.CustomerType,
	}
}
