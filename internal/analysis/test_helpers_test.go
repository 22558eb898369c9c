package analysis

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"feedback-backend/internal/llm"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/telemetry"
)

const (
	sentimentPraise      = `{"score":0.9,"emotionLabel":"admiration","confidence":0.95}`
	categorizationPraise = `{"primaryCategory":"service_quality","secondaryCategories":["praise"],"topics":["service"],"urgency":"low","requiresAction":false,"customerType":"unknown","confidence":0.8}`
	actionsPraise        = `{"immediateActions":["Thank the customer"],"followUpActions":[],"preventionActions":[],"escalate":false,"confidence":0.7}`
	legacyPraise         = `{"sentiment":` + sentimentPraise + `,"categorization":` + categorizationPraise + `,"actions":` + actionsPraise + `}`
)

type handlerFunc func(ctx context.Context, call int, inputs llm.Inputs) (string, error)

// scriptedInvoker answers per template and counts calls and concurrency.
type scriptedInvoker struct {
	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    map[string]int

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func newScriptedInvoker(handlers map[string]handlerFunc) *scriptedInvoker {
	return &scriptedInvoker{handlers: handlers, calls: make(map[string]int)}
}

func (s *scriptedInvoker) Invoke(ctx context.Context, templateID string, inputs llm.Inputs, timeout time.Duration) (string, error) {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		prev := s.maxInFlight.Load()
		if cur <= prev || s.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}

	s.mu.Lock()
	s.calls[templateID]++
	n := s.calls[templateID]
	h := s.handlers[templateID]
	s.mu.Unlock()
	if h == nil {
		return "", errors.New("unexpected template " + templateID)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return h(ctx, n, inputs)
}

func (s *scriptedInvoker) callCount(templateID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[templateID]
}

func respond(body string) handlerFunc {
	return func(context.Context, int, llm.Inputs) (string, error) { return body, nil }
}

func failWith(err error) handlerFunc {
	return func(context.Context, int, llm.Inputs) (string, error) { return "", err }
}

func blockUntilDone() handlerFunc {
	return func(ctx context.Context, _ int, _ llm.Inputs) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
}

func praiseHandlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		llm.TemplateSentiment:      respond(sentimentPraise),
		llm.TemplateCategorization: respond(categorizationPraise),
		llm.TemplateActions:        respond(actionsPraise),
		llm.TemplateLegacy:         respond(legacyPraise),
	}
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		SentimentTimeout:      time.Second,
		CategorizationTimeout: time.Second,
		ActionsTimeout:        2 * time.Second,
		LegacyTimeout:         time.Second,
		PipelineDeadline:      5 * time.Second,
		RetryBackoff:          time.Millisecond,
		BatchMaxConcurrency:   4,
		BatchMaxItems:         100,
		BatchDeadline:         time.Minute,
	}
}

func silenceLogs(t *testing.T) {
	t.Helper()
	restore := telemetry.SetOutput(io.Discard)
	t.Cleanup(restore)
}

func assertRanges(t *testing.T, out Outcome) {
	t.Helper()
	if out.Sentiment.Score < -1 || out.Sentiment.Score > 1 {
		t.Fatalf("score out of range: %v", out.Sentiment.Score)
	}
	if out.Sentiment.Confidence < 0 || out.Sentiment.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", out.Sentiment.Confidence)
	}
	if out.Categorization.PrimaryCategory == "" || out.Categorization.Urgency == "" {
		t.Fatalf("categorization not well formed: %+v", out.Categorization)
	}
	if out.CorrelationID == "" {
		t.Fatalf("missing correlation id")
	}
}
