package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"feedback-backend/internal/analysis"
	"feedback-backend/internal/feedback"
	"feedback-backend/internal/llm"
	"feedback-backend/internal/outcomes"
	"feedback-backend/internal/services/health"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/telemetry"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	t.Cleanup(telemetry.SetOutput(io.Discard))
	cfg := config.Config{Env: "production", Pipeline: config.DefaultPipelineConfig(), RateLimitRPS: 1, RateLimitBurst: 1}
	engine := analysis.NewEngine(llm.PlaceholderInvoker{}, cfg.Pipeline)
	return NewRouter(RouterDeps{
		Config:   cfg,
		Feedback: feedback.NewHandler(engine, outcomes.NewMemoryRepo(), nil, cfg.Pipeline),
		Health:   health.NewService(nil, false, "placeholder"),
	})
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	r := testRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"database":"memory"`) {
		t.Fatalf("unexpected health response %d %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "feedback_analysis_started_total") {
		t.Fatalf("unexpected metrics response %d", resp.Code)
	}
}

func TestAnalyzeRouteIsRateLimited(t *testing.T) {
	r := testRouter(t)
	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback/analyze", strings.NewReader(`{"text":"great"}`))
		req.Header.Set("Content-Type", "application/json")
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		return resp.Code
	}
	if code := post(); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
}

func TestAddr(t *testing.T) {
	for in, want := range map[string]string{"": ":8080", "9090": ":9090", ":7000": ":7000"} {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
