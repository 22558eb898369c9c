package analysis

import (
	"context"
	"time"

	"feedback-backend/internal/llm"
)

const stageActions = "actions"

// ActionStage recommends follow-up work from the text and both earlier results.
type ActionStage struct {
	call stageCall
}

// NewActionStage builds the action-recommendation stage over inv.
func NewActionStage(inv llm.Invoker, retry RetryPolicy) *ActionStage {
	return &ActionStage{call: stageCall{invoker: inv, retry: retry}}
}

func (s *ActionStage) Name() string { return stageActions }

func (s *ActionStage) Execute(ctx context.Context, state *State, timeout time.Duration) StageResult[Actions] {
	inputs := llm.Inputs{
		"text":           truncateRunes(state.NormalizedText, maxPromptRunes),
		"locale":         state.Locale,
		"sentiment":      sentimentContext(state.Sentiment),
		"categorization": categorizationContext(state.Categorization),
	}
	raw, attempts, stageErr := s.call.run(ctx, stageActions, llm.TemplateActions, inputs, timeout)
	if stageErr != nil {
		return stageFailed[Actions](stageErr, attempts)
	}
	v, err := parseActions(raw)
	if err != nil {
		return stageFailed[Actions](invalidShape(stageActions, err), attempts)
	}
	return stageOK(v, v.Confidence, attempts)
}
