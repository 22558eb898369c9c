package analysis

import (
	"context"
	"fmt"
	"time"

	"feedback-backend/internal/llm"
	"feedback-backend/internal/normalize"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/metrics"
	"feedback-backend/internal/shared/telemetry"
)

// StageTimeouts holds the independent per-call budget of each stage.
type StageTimeouts struct {
	Sentiment      time.Duration
	Categorization time.Duration
	Actions        time.Duration
}

// Orchestrator runs Normalize, Sentiment, Categorization and Action in order.
type Orchestrator struct {
	sentiment      Stage[Sentiment]
	categorization Stage[Categorization]
	actions        Stage[Actions]
	timeouts       StageTimeouts
	deadline       time.Duration
}

// NewOrchestrator wires the three stages over inv using cfg timeouts.
func NewOrchestrator(inv llm.Invoker, cfg config.PipelineConfig) *Orchestrator {
	retry := DefaultRetryPolicy()
	if cfg.RetryBackoff > 0 {
		retry.Backoff = cfg.RetryBackoff
	}
	return &Orchestrator{
		sentiment:      NewSentimentStage(inv, retry),
		categorization: NewCategorizationStage(inv, retry),
		actions:        NewActionStage(inv, retry),
		timeouts: StageTimeouts{
			Sentiment:      cfg.SentimentTimeout,
			Categorization: cfg.CategorizationTimeout,
			Actions:        cfg.ActionsTimeout,
		},
		deadline: cfg.PipelineDeadline,
	}
}

// Run executes the pipeline for req. It returns ErrNoContent when the normalized
// text is empty and an error wrapping ErrPipelineFatal when the sentiment stage
// fails or the deadline passes before it completes. Later stage failures are
// absorbed: the stage default is used and the state is marked degraded.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*State, error) {
	st := NewState(req)
	if err := st.setNormalized(normalize.Text(req.Text)); err != nil {
		return st, err
	}
	if st.NormalizedText == "" {
		st.fail()
		return st, ErrNoContent
	}

	if o.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.deadline)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		st.logStage(stageSentiment, StatusSkipped, 0, 0)
		st.recordError(newStageError(stageSentiment, KindTimeout, fmt.Errorf("pipeline deadline: %w", err)))
		st.fail()
		return st, fmt.Errorf("%w: deadline exceeded before sentiment", ErrPipelineFatal)
	}

	sent := runStage(ctx, st, o.sentiment, o.timeouts.Sentiment)
	if !sent.OK() {
		st.fail()
		return st, fmt.Errorf("%w: %v", ErrPipelineFatal, sent.Err)
	}
	if err := st.setSentiment(sent.Value); err != nil {
		st.fail()
		return st, fmt.Errorf("%w: %v", ErrPipelineFatal, err)
	}

	cat := defaultCategorization()
	if o.skipIfExpired(ctx, st, stageCategorization) {
		st.Degraded = true
	} else if res := runStage(ctx, st, o.categorization, o.timeouts.Categorization); res.OK() {
		cat = res.Value
	} else {
		st.Degraded = true
	}
	if err := st.setCategorization(cat); err != nil {
		return st, err
	}

	act := defaultActions()
	if o.skipIfExpired(ctx, st, stageActions) {
		st.Degraded = true
	} else if res := runStage(ctx, st, o.actions, o.timeouts.Actions); res.OK() {
		act = res.Value
	} else {
		st.Degraded = true
	}
	if err := st.setActions(act); err != nil {
		return st, err
	}

	if err := st.advance(StageCompleted); err != nil {
		return st, err
	}
	return st, nil
}

func (o *Orchestrator) skipIfExpired(ctx context.Context, st *State, stage string) bool {
	if ctx.Err() == nil {
		return false
	}
	st.logStage(stage, StatusSkipped, 0, 0)
	st.recordError(newStageError(stage, KindTimeout, fmt.Errorf("pipeline deadline exceeded, stage skipped")))
	telemetry.Warn("analysis.stage.skipped", map[string]any{
		"stage":         stage,
		"correlationId": st.CorrelationID,
	})
	return true
}

// runStage executes one stage and records its log entry and error on st. The stage
// result is returned for the caller to apply.
func runStage[T any](ctx context.Context, st *State, stage Stage[T], timeout time.Duration) StageResult[T] {
	start := time.Now()
	res := stage.Execute(ctx, st, timeout)
	elapsed := time.Since(start)
	if res.OK() {
		st.logStage(stage.Name(), StatusOK, elapsed, res.Attempts)
		return res
	}

	status := StatusDefaulted
	if stage.Name() == stageSentiment {
		status = StatusFailed
	}
	st.logStage(stage.Name(), status, elapsed, res.Attempts)
	st.recordError(res.Err)
	metrics.IncStageFailure(stage.Name(), string(res.Err.Kind))
	telemetry.Warn("analysis.stage.failed", map[string]any{
		"stage":         stage.Name(),
		"kind":          string(res.Err.Kind),
		"attempts":      res.Attempts,
		"durationMs":    elapsed.Milliseconds(),
		"correlationId": st.CorrelationID,
		"error":         res.Err.Message,
	})
	return res
}
