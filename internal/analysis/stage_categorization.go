package analysis

import (
	"context"
	"time"

	"feedback-backend/internal/llm"
)

const stageCategorization = "categorization"

// CategorizationStage assigns categories and urgency. Its prompt carries the
// sentiment result so urgency reflects the detected emotion.
type CategorizationStage struct {
	call stageCall
}

// NewCategorizationStage builds the categorization stage over inv.
func NewCategorizationStage(inv llm.Invoker, retry RetryPolicy) *CategorizationStage {
	return &CategorizationStage{call: stageCall{invoker: inv, retry: retry}}
}

func (s *CategorizationStage) Name() string { return stageCategorization }

func (s *CategorizationStage) Execute(ctx context.Context, state *State, timeout time.Duration) StageResult[Categorization] {
	inputs := llm.Inputs{
		"text":      truncateRunes(state.NormalizedText, maxPromptRunes),
		"locale":    state.Locale,
		"sentiment": sentimentContext(state.Sentiment),
	}
	raw, attempts, stageErr := s.call.run(ctx, stageCategorization, llm.TemplateCategorization, inputs, timeout)
	if stageErr != nil {
		return stageFailed[Categorization](stageErr, attempts)
	}
	v, err := parseCategorization(raw)
	if err != nil {
		return stageFailed[Categorization](invalidShape(stageCategorization, err), attempts)
	}
	return stageOK(v, v.Confidence, attempts)
}
