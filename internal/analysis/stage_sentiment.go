package analysis

import (
	"context"
	"time"

	"feedback-backend/internal/llm"
)

const stageSentiment = "sentiment"

// SentimentStage scores polarity and emotion from the normalized text alone.
type SentimentStage struct {
	call stageCall
}

// NewSentimentStage builds the sentiment stage over inv.
func NewSentimentStage(inv llm.Invoker, retry RetryPolicy) *SentimentStage {
	return &SentimentStage{call: stageCall{invoker: inv, retry: retry}}
}

func (s *SentimentStage) Name() string { return stageSentiment }

func (s *SentimentStage) Execute(ctx context.Context, state *State, timeout time.Duration) StageResult[Sentiment] {
	inputs := llm.Inputs{
		"text":   truncateRunes(state.NormalizedText, maxPromptRunes),
		"locale": state.Locale,
	}
	raw, attempts, stageErr := s.call.run(ctx, stageSentiment, llm.TemplateSentiment, inputs, timeout)
	if stageErr != nil {
		return stageFailed[Sentiment](stageErr, attempts)
	}
	v, err := parseSentiment(raw)
	if err != nil {
		return stageFailed[Sentiment](invalidShape(stageSentiment, err), attempts)
	}
	return stageOK(v, v.Confidence, attempts)
}
