package analysis

import (
	"context"
	"fmt"
	"time"

	"feedback-backend/internal/llm"
)

const stageLegacy = "legacy"

// LegacyAnalyzer requests every section in one call. It is used only after the
// staged pipeline failed, and it does not retry.
type LegacyAnalyzer struct {
	invoker llm.Invoker
	timeout time.Duration
}

// NewLegacyAnalyzer builds the single-pass analyzer.
func NewLegacyAnalyzer(inv llm.Invoker, timeout time.Duration) *LegacyAnalyzer {
	return &LegacyAnalyzer{invoker: inv, timeout: timeout}
}

// Analyze runs the single-pass prompt over normalized text. Any invalid section fails
// the whole call.
func (a *LegacyAnalyzer) Analyze(ctx context.Context, text, locale string) (Sentiment, Categorization, Actions, *StageError) {
	if text == "" {
		return Sentiment{}, Categorization{}, Actions{}, newStageError(stageLegacy, KindUnknown, ErrNoContent)
	}
	inputs := llm.Inputs{
		"text":   truncateRunes(text, maxPromptRunes),
		"locale": locale,
	}
	raw, err := a.invoker.Invoke(ctx, llm.TemplateLegacy, inputs, a.timeout)
	if err != nil {
		return Sentiment{}, Categorization{}, Actions{}, newStageError(stageLegacy, classifyInvokeError(err), err)
	}
	s, c, act, err := parseLegacy(raw)
	if err != nil {
		return Sentiment{}, Categorization{}, Actions{}, invalidShape(stageLegacy, fmt.Errorf("legacy output invalid: %w", err))
	}
	return s, c, act, nil
}
