package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"feedback-backend/internal/llm"
)

func TestAnalyzeOneArabicPraise(t *testing.T) {
	silenceLogs(t)
	inv := newScriptedInvoker(praiseHandlers())
	engine := NewEngine(inv, testPipelineConfig())

	out := engine.AnalyzeOne(context.Background(), Request{Text: "الخدمة ممتازة جداً"})

	if out.Sentiment.Score != 0.9 {
		t.Fatalf("expected score 0.9, got %v", out.Sentiment.Score)
	}
	if out.Sentiment.EmotionLabel != "admiration" {
		t.Fatalf("expected admiration, got %q", out.Sentiment.EmotionLabel)
	}
	if out.Sentiment.Intensity != LevelHigh {
		t.Fatalf("expected derived intensity high, got %q", out.Sentiment.Intensity)
	}
	if out.MethodUsed != MethodAgentPipeline {
		t.Fatalf("expected agent_pipeline, got %s", out.MethodUsed)
	}
	if out.Degraded {
		t.Fatalf("expected degraded=false")
	}
	if len(out.Errors) != 0 {
		t.Fatalf("expected no errors, got %+v", out.Errors)
	}
	if len(out.StageLog) != 3 {
		t.Fatalf("expected 3 stage log entries, got %+v", out.StageLog)
	}
	assertRanges(t, out)
	if inv.callCount(llm.TemplateLegacy) != 0 {
		t.Fatalf("legacy tier must not run")
	}
}

func TestAnalyzeOneMalformedCategorization(t *testing.T) {
	silenceLogs(t)
	handlers := praiseHandlers()
	handlers[llm.TemplateCategorization] = respond(`{"category":"nope","level":7}`)
	inv := newScriptedInvoker(handlers)
	engine := NewEngine(inv, testPipelineConfig())

	out := engine.AnalyzeOne(context.Background(), Request{Text: "الخدمة ممتازة جداً", CorrelationID: "c-1"})

	if out.MethodUsed != MethodAgentPipeline {
		t.Fatalf("expected agent_pipeline, got %s", out.MethodUsed)
	}
	if !out.Degraded {
		t.Fatalf("expected degraded=true")
	}
	if len(out.Errors) != 1 || out.Errors[0].Kind != KindInvalidResponseShape || out.Errors[0].Stage != stageCategorization {
		t.Fatalf("expected one invalid_response_shape error for categorization, got %+v", out.Errors)
	}
	if out.Categorization.PrimaryCategory != CategoryOther || out.Categorization.Urgency != LevelLow {
		t.Fatalf("expected defaulted categorization, got %+v", out.Categorization)
	}
	if inv.callCount(llm.TemplateCategorization) != 1 {
		t.Fatalf("invalid shape must not be retried, got %d calls", inv.callCount(llm.TemplateCategorization))
	}
	if inv.callCount(llm.TemplateActions) != 1 {
		t.Fatalf("actions stage must still run")
	}
	if out.CorrelationID != "c-1" {
		t.Fatalf("correlation id not preserved: %q", out.CorrelationID)
	}
	assertRanges(t, out)
}

func TestAnalyzeOneSentimentTimeoutEscalates(t *testing.T) {
	silenceLogs(t)

	t.Run("legacy fails too", func(t *testing.T) {
		handlers := praiseHandlers()
		handlers[llm.TemplateSentiment] = failWith(llm.ErrTimeout)
		handlers[llm.TemplateLegacy] = failWith(llm.ErrUnavailable)
		inv := newScriptedInvoker(handlers)
		engine := NewEngine(inv, testPipelineConfig())

		out := engine.AnalyzeOne(context.Background(), Request{Text: "the delivery was fine"})

		if got := inv.callCount(llm.TemplateSentiment); got != 2 {
			t.Fatalf("expected sentiment to be tried twice, got %d", got)
		}
		if got := inv.callCount(llm.TemplateLegacy); got != 1 {
			t.Fatalf("expected one legacy call, got %d", got)
		}
		if inv.callCount(llm.TemplateCategorization) != 0 {
			t.Fatalf("categorization must not run after sentiment failure")
		}
		if out.MethodUsed != MethodEmergencyFallback || !out.Degraded {
			t.Fatalf("expected degraded emergency outcome, got %s degraded=%v", out.MethodUsed, out.Degraded)
		}
		if out.Actions.Escalate || len(out.Actions.Immediate) != 0 {
			t.Fatalf("emergency tier must not recommend actions: %+v", out.Actions)
		}
		if out.Categorization.PrimaryCategory != CategoryOther {
			t.Fatalf("expected fixed category, got %q", out.Categorization.PrimaryCategory)
		}
		if len(out.Errors) != 2 || out.Errors[0].Kind != KindTimeout || out.Errors[1].Stage != stageLegacy {
			t.Fatalf("unexpected errors %+v", out.Errors)
		}
		assertRanges(t, out)
	})

	t.Run("legacy succeeds", func(t *testing.T) {
		handlers := praiseHandlers()
		handlers[llm.TemplateSentiment] = failWith(llm.ErrTimeout)
		inv := newScriptedInvoker(handlers)
		engine := NewEngine(inv, testPipelineConfig())

		out := engine.AnalyzeOne(context.Background(), Request{Text: "الخدمة ممتازة"})

		if out.MethodUsed != MethodLegacySinglePass {
			t.Fatalf("expected legacy_single_pass, got %s", out.MethodUsed)
		}
		if out.Degraded {
			t.Fatalf("legacy outcome should not be degraded")
		}
		if out.Sentiment.Score != 0.9 || out.Categorization.PrimaryCategory != "service_quality" {
			t.Fatalf("unexpected legacy outcome %+v", out)
		}
	})
}

func TestAnalyzeOneSentimentFailureNeverCleanPipeline(t *testing.T) {
	silenceLogs(t)
	failures := map[string]handlerFunc{
		"timeout":      failWith(llm.ErrTimeout),
		"rate limited": failWith(llm.ErrRateLimited),
		"bad shape":    respond(`{"score":"high"}`),
		"out of range": respond(`{"score":3,"emotionLabel":"joy","confidence":0.9}`),
		"unknown":      failWith(errors.New("boom")),
	}
	for name, h := range failures {
		h := h
		t.Run(name, func(t *testing.T) {
			handlers := praiseHandlers()
			handlers[llm.TemplateSentiment] = h
			engine := NewEngine(newScriptedInvoker(handlers), testPipelineConfig())
			out := engine.AnalyzeOne(context.Background(), Request{Text: "ok"})
			if out.MethodUsed == MethodAgentPipeline && !out.Degraded {
				t.Fatalf("sentiment failure produced a clean pipeline outcome")
			}
			assertRanges(t, out)
		})
	}
}

func TestAnalyzeOneAlwaysFailingCollaborator(t *testing.T) {
	silenceLogs(t)
	var calls int
	inv := llm.InvokerFunc(func(ctx context.Context, templateID string, inputs llm.Inputs, timeout time.Duration) (string, error) {
		calls++
		return "", errors.New("service down")
	})
	engine := NewEngine(inv, testPipelineConfig())

	for _, text := range []string{"الخدمة ممتازة جداً", "terrible support, refund now", "   ", "x"} {
		out := engine.AnalyzeOne(context.Background(), Request{Text: text})
		if out.MethodUsed != MethodEmergencyFallback {
			t.Fatalf("expected emergency_fallback for %q, got %s", text, out.MethodUsed)
		}
		assertRanges(t, out)
	}
	if calls == 0 {
		t.Fatalf("expected the collaborator to be called")
	}
}

func TestAnalyzeOnePlaceholderInvoker(t *testing.T) {
	silenceLogs(t)
	engine := NewEngine(nil, testPipelineConfig())
	out := engine.AnalyzeOne(context.Background(), Request{Text: "great service"})
	if out.MethodUsed != MethodEmergencyFallback {
		t.Fatalf("expected emergency_fallback, got %s", out.MethodUsed)
	}
	if out.Sentiment.Score <= 0 {
		t.Fatalf("expected positive lexicon score, got %v", out.Sentiment.Score)
	}
}

func TestAnalyzeOneEmptyTextSkipsStages(t *testing.T) {
	silenceLogs(t)
	inv := newScriptedInvoker(praiseHandlers())
	engine := NewEngine(inv, testPipelineConfig())

	out := engine.AnalyzeOne(context.Background(), Request{Text: " \u200b\u0640 "})

	for _, tpl := range []string{llm.TemplateSentiment, llm.TemplateCategorization, llm.TemplateActions, llm.TemplateLegacy} {
		if inv.callCount(tpl) != 0 {
			t.Fatalf("template %s must not be called for empty input", tpl)
		}
	}
	if out.MethodUsed != MethodEmergencyFallback || !out.Degraded {
		t.Fatalf("expected degraded emergency outcome, got %+v", out)
	}
	if out.Sentiment.Score != 0 || out.Sentiment.EmotionLabel != EmotionNeutral {
		t.Fatalf("expected neutral sentiment, got %+v", out.Sentiment)
	}
}

func TestAnalyzeOneRateLimitRetriedOnce(t *testing.T) {
	silenceLogs(t)
	handlers := praiseHandlers()
	handlers[llm.TemplateCategorization] = func(ctx context.Context, call int, _ llm.Inputs) (string, error) {
		if call == 1 {
			return "", llm.ErrRateLimited
		}
		return categorizationPraise, nil
	}
	inv := newScriptedInvoker(handlers)
	engine := NewEngine(inv, testPipelineConfig())

	out := engine.AnalyzeOne(context.Background(), Request{Text: "good"})

	if out.Degraded || out.MethodUsed != MethodAgentPipeline {
		t.Fatalf("expected clean pipeline after retry, got %s degraded=%v", out.MethodUsed, out.Degraded)
	}
	if inv.callCount(llm.TemplateCategorization) != 2 {
		t.Fatalf("expected 2 categorization calls, got %d", inv.callCount(llm.TemplateCategorization))
	}
	if out.StageLog[1].Stage != stageCategorization || out.StageLog[1].Attempts != 2 {
		t.Fatalf("expected categorization attempts=2, got %+v", out.StageLog[1])
	}
}

func TestAnalyzeOneStagePromptsCarryContext(t *testing.T) {
	silenceLogs(t)
	handlers := praiseHandlers()
	var catInputs, actInputs llm.Inputs
	handlers[llm.TemplateCategorization] = func(_ context.Context, _ int, in llm.Inputs) (string, error) {
		catInputs = in
		return categorizationPraise, nil
	}
	handlers[llm.TemplateActions] = func(_ context.Context, _ int, in llm.Inputs) (string, error) {
		actInputs = in
		return actionsPraise, nil
	}
	engine := NewEngine(newScriptedInvoker(handlers), testPipelineConfig())
	long := strings.Repeat("ab ", 3000)

	engine.AnalyzeOne(context.Background(), Request{Text: long})

	if catInputs["sentiment"] == nil {
		t.Fatalf("categorization prompt must include sentiment")
	}
	if actInputs["sentiment"] == nil || actInputs["categorization"] == nil {
		t.Fatalf("action prompt must include both prior results")
	}
	if text, _ := catInputs["text"].(string); len([]rune(text)) > maxPromptRunes {
		t.Fatalf("prompt text not truncated: %d runes", len([]rune(text)))
	}
}

func TestAnalyzeOneCompletionHook(t *testing.T) {
	silenceLogs(t)
	var gotID string
	var gotMethod Method
	hook := func(ctx context.Context, correlationID string, out Outcome) error {
		gotID = correlationID
		gotMethod = out.MethodUsed
		return errors.New("db down")
	}
	engine := NewEngine(newScriptedInvoker(praiseHandlers()), testPipelineConfig(),
		WithCompletionHook(hook),
		WithIDGenerator(func() string { return "generated-id" }),
	)

	out := engine.AnalyzeOne(context.Background(), Request{Text: "nice"})

	if gotID != "generated-id" || out.CorrelationID != "generated-id" {
		t.Fatalf("expected generated correlation id, hook=%q outcome=%q", gotID, out.CorrelationID)
	}
	if gotMethod != MethodAgentPipeline || out.MethodUsed != MethodAgentPipeline {
		t.Fatalf("hook error must not change the outcome")
	}
}

func TestAnalyzeOneRecoversPanics(t *testing.T) {
	silenceLogs(t)
	inv := llm.InvokerFunc(func(ctx context.Context, templateID string, inputs llm.Inputs, timeout time.Duration) (string, error) {
		panic("invoker exploded")
	})
	engine := NewEngine(inv, testPipelineConfig())

	out := engine.AnalyzeOne(context.Background(), Request{Text: "bad service"})

	if out.MethodUsed != MethodEmergencyFallback {
		t.Fatalf("expected emergency_fallback, got %s", out.MethodUsed)
	}
	if len(out.Errors) != 1 || !strings.Contains(out.Errors[0].Message, ErrTierExhausted.Error()) {
		t.Fatalf("expected tier exhausted error, got %+v", out.Errors)
	}
	assertRanges(t, out)
}
