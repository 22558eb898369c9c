package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"feedback-backend/internal/llm"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/metrics"
	"feedback-backend/internal/shared/telemetry"
)

// CompletionHook receives every finished Outcome. Errors are logged and counted but
// never change the Outcome returned to the caller.
type CompletionHook func(ctx context.Context, correlationID string, out Outcome) error

// Option configures an Engine.
type Option func(*Engine)

// WithCompletionHook registers the persistence callback.
func WithCompletionHook(h CompletionHook) Option {
	return func(e *Engine) {
		e.hook = h
	}
}

// WithIDGenerator overrides how missing correlation ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// Engine is the caller surface: AnalyzeOne and AnalyzeBatch. It is safe for
// concurrent use as long as the injected invoker is.
type Engine struct {
	orchestrator *Orchestrator
	legacy       *LegacyAnalyzer
	emergency    EmergencyAnalyzer
	hook         CompletionHook
	newID        func() string
}

// NewEngine builds the three-tier engine around inv.
func NewEngine(inv llm.Invoker, cfg config.PipelineConfig, opts ...Option) *Engine {
	if inv == nil {
		inv = llm.PlaceholderInvoker{}
	}
	e := &Engine{
		orchestrator: NewOrchestrator(inv, cfg),
		legacy:       NewLegacyAnalyzer(inv, cfg.LegacyTimeout),
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AnalyzeOne runs req through the fallback chain. It always returns a complete
// Outcome; the worst case is an emergency_fallback result.
func (e *Engine) AnalyzeOne(ctx context.Context, req Request) Outcome {
	start := time.Now()
	if req.CorrelationID == "" {
		req.CorrelationID = e.newID()
	}
	metrics.IncAnalysisStarted()

	out := e.analyze(ctx, req, start)
	clampOutcome(&out)
	e.finish(ctx, out)
	return out
}

func (e *Engine) analyze(ctx context.Context, req Request, start time.Time) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("analysis.panic_recovered", map[string]any{
				"correlationId": req.CorrelationID,
				"panic":         fmt.Sprint(r),
			})
			out = e.emergencyOutcome(req, start, []ErrorEntry{{
				Stage:   "engine",
				Kind:    KindUnknown,
				Message: sanitizeError(fmt.Errorf("%w: panic: %v", ErrTierExhausted, r)),
			}}, nil)
		}
	}()

	st, err := e.orchestrator.Run(ctx, req)
	if err == nil {
		return e.stateOutcome(req, st, start)
	}
	if errors.Is(err, ErrNoContent) {
		return e.emergencyOutcome(req, start, []ErrorEntry{{
			Stage:   "normalize",
			Kind:    KindUnknown,
			Message: "no content after normalization",
		}}, st.StageLog)
	}
	if !errors.Is(err, ErrPipelineFatal) {
		// State machine misuse; treat as fatal so a lower tier answers.
		telemetry.Error("analysis.pipeline.internal", map[string]any{
			"correlationId": req.CorrelationID,
			"error":         sanitizeError(err),
		})
	}

	errs := append([]ErrorEntry(nil), st.Errors...)
	stageLog := append([]StageLogEntry(nil), st.StageLog...)
	telemetry.Warn("analysis.tier.escalated", map[string]any{
		"correlationId": req.CorrelationID,
		"from":          string(MethodAgentPipeline),
		"to":            string(MethodLegacySinglePass),
		"error":         sanitizeError(err),
	})

	legacyStart := time.Now()
	sent, cat, act, lerr := e.legacy.Analyze(ctx, st.NormalizedText, req.Locale)
	if lerr == nil {
		stageLog = append(stageLog, StageLogEntry{Stage: stageLegacy, Status: StatusOK, DurationMs: time.Since(legacyStart).Milliseconds(), Attempts: 1})
		return Outcome{
			CorrelationID:    req.CorrelationID,
			Sentiment:        sent,
			Categorization:   cat,
			Actions:          act,
			MethodUsed:       MethodLegacySinglePass,
			Degraded:         false,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Errors:           errs,
			StageLog:         stageLog,
		}
	}

	stageLog = append(stageLog, StageLogEntry{Stage: stageLegacy, Status: StatusFailed, DurationMs: time.Since(legacyStart).Milliseconds(), Attempts: 1})
	errs = append(errs, lerr.entry())
	metrics.IncStageFailure(stageLegacy, string(lerr.Kind))
	telemetry.Warn("analysis.tier.escalated", map[string]any{
		"correlationId": req.CorrelationID,
		"from":          string(MethodLegacySinglePass),
		"to":            string(MethodEmergencyFallback),
		"error":         lerr.Message,
	})
	return e.emergencyOutcome(req, start, errs, stageLog)
}

func (e *Engine) stateOutcome(req Request, st *State, start time.Time) Outcome {
	out := Outcome{
		CorrelationID:    req.CorrelationID,
		Sentiment:        *st.Sentiment,
		Categorization:   *st.Categorization,
		Actions:          *st.Actions,
		MethodUsed:       MethodAgentPipeline,
		Degraded:         st.Degraded,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Errors:           st.Errors,
		StageLog:         st.StageLog,
	}
	return out
}

func (e *Engine) emergencyOutcome(req Request, start time.Time, errs []ErrorEntry, stageLog []StageLogEntry) Outcome {
	sent, cat, act := e.emergency.Analyze(req.Text)
	stageLog = append(stageLog, StageLogEntry{Stage: "emergency", Status: StatusOK})
	return Outcome{
		CorrelationID:    req.CorrelationID,
		Sentiment:        sent,
		Categorization:   cat,
		Actions:          act,
		MethodUsed:       MethodEmergencyFallback,
		Degraded:         true,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Errors:           errs,
		StageLog:         stageLog,
	}
}

// finish records metrics and calls the hook.
func (e *Engine) finish(ctx context.Context, out Outcome) {
	metrics.IncMethod(string(out.MethodUsed))
	if out.Degraded {
		metrics.IncDegraded()
	}
	metrics.ObserveAnalysisDurationMs(float64(out.ProcessingTimeMs))
	telemetry.Info("analysis.completed", map[string]any{
		"correlationId":    out.CorrelationID,
		"method":           string(out.MethodUsed),
		"degraded":         out.Degraded,
		"errors":           len(out.Errors),
		"processingTimeMs": out.ProcessingTimeMs,
	})
	e.callHook(ctx, out)
}

func (e *Engine) callHook(ctx context.Context, out Outcome) {
	if e.hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.IncHookFailed()
			telemetry.Error("analysis.hook.panic", map[string]any{
				"correlationId": out.CorrelationID,
				"panic":         fmt.Sprint(r),
			})
		}
	}()
	if err := e.hook(context.WithoutCancel(ctx), out.CorrelationID, out); err != nil {
		metrics.IncHookFailed()
		telemetry.Error("analysis.hook.failed", map[string]any{
			"correlationId": out.CorrelationID,
			"error":         sanitizeError(err),
		})
	}
}

func clampOutcome(out *Outcome) {
	out.Sentiment.Score = clampFinite(out.Sentiment.Score, -1, 1)
	out.Sentiment.Confidence = clampFinite(out.Sentiment.Confidence, 0, 1)
	out.Categorization.Confidence = clampFinite(out.Categorization.Confidence, 0, 1)
	out.Actions.Confidence = clampFinite(out.Actions.Confidence, 0, 1)
}

func clampFinite(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}
