package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiterRefills(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(func() time.Time { return now })
	rule := RateRule{Rate: 1, Burst: 2}

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow("k", rule); !ok {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	ok, wait := l.Allow("k", rule)
	if ok || wait != time.Second {
		t.Fatalf("expected denial with 1s wait, got ok=%v wait=%s", ok, wait)
	}

	now = now.Add(time.Second)
	if ok, _ := l.Allow("k", rule); !ok {
		t.Fatalf("expected refill after one second")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(func() time.Time { return now })
	rule := RateRule{Rate: 1, Burst: 1}
	if ok, _ := l.Allow("a|ANALYZE", rule); !ok {
		t.Fatalf("first key should pass")
	}
	if ok, _ := l.Allow("a|BATCH", rule); !ok {
		t.Fatalf("second group should have its own bucket")
	}
	if ok, _ := l.Allow("a|ANALYZE", rule); ok {
		t.Fatalf("first key should be exhausted")
	}
}

func TestRateLimit429Envelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	r := gin.New()
	r.POST("/analyze", RateLimit(limiter, "ANALYZE", RateRule{Rate: 1, Burst: 1}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/analyze", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/analyze", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", second.Header().Get("Retry-After"))
	}
	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(second.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error.Code != "rate_limited" || payload.Error.Details["retryAfterMs"] == nil {
		t.Fatalf("unexpected body %+v", payload)
	}
}
