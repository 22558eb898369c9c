// Package feedback exposes the analysis engine and stored outcomes over HTTP.
package feedback

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"feedback-backend/internal/analysis"
	"feedback-backend/internal/outcomes"
	"feedback-backend/internal/queue"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/server/middleware"
	"feedback-backend/internal/shared/server/respond"
	"feedback-backend/internal/shared/telemetry"
)

const (
	maxTextRunes         = 10000
	maxCorrelationIDLen  = 128
	maxLocaleLen         = 16
	defaultOutcomesLimit = 20
)

// Analyzer is the caller surface of the analysis engine.
type Analyzer interface {
	AnalyzeOne(ctx context.Context, req analysis.Request) analysis.Outcome
	AnalyzeBatch(ctx context.Context, reqs []analysis.Request, maxConcurrency int) []analysis.Outcome
}

// Handler serves the feedback routes.
type Handler struct {
	Engine   Analyzer
	Outcomes outcomes.Repo
	// Queue is optional; without it the enqueue route answers 503.
	Queue    queue.Client
	Pipeline config.PipelineConfig

	now   func() time.Time
	newID func() string
}

// NewHandler constructs a Handler.
func NewHandler(engine Analyzer, repo outcomes.Repo, q queue.Client, pipeline config.PipelineConfig) *Handler {
	return &Handler{
		Engine:   engine,
		Outcomes: repo,
		Queue:    q,
		Pipeline: pipeline,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// RegisterRoutes attaches the feedback routes. limit guards the routes that
// reach the language model; it may be nil.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, limit gin.HandlerFunc) {
	guarded := []gin.HandlerFunc{}
	if limit != nil {
		guarded = append(guarded, limit)
	}
	rg.POST("/feedback/analyze", append(guarded, h.analyze)...)
	rg.POST("/feedback/analyze/batch", append(guarded, h.analyzeBatch)...)
	rg.POST("/feedback", h.enqueue)
	rg.GET("/feedback/outcomes", h.listOutcomes)
	rg.GET("/feedback/outcomes/:correlationId", h.getOutcome)
}

type itemRequest struct {
	Text          string `json:"text"`
	CorrelationID string `json:"correlationId"`
	Locale        string `json:"locale"`
}

type batchRequest struct {
	Items          []itemRequest `json:"items"`
	MaxConcurrency int           `json:"maxConcurrency"`
}

type fieldIssue struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// validateItem checks the limits shared by every route. requireText is false
// for batch items so blank entries still get a per-item outcome.
func validateItem(prefix string, item itemRequest, requireText bool) []fieldIssue {
	var issues []fieldIssue
	if requireText && strings.TrimSpace(item.Text) == "" {
		issues = append(issues, fieldIssue{Field: prefix + "text", Issue: "required"})
	}
	if utf8.RuneCountInString(item.Text) > maxTextRunes {
		issues = append(issues, fieldIssue{Field: prefix + "text", Issue: "too_long"})
	}
	if len(item.CorrelationID) > maxCorrelationIDLen {
		issues = append(issues, fieldIssue{Field: prefix + "correlationId", Issue: "too_long"})
	}
	if len(item.Locale) > maxLocaleLen {
		issues = append(issues, fieldIssue{Field: prefix + "locale", Issue: "too_long"})
	}
	return issues
}

func (item itemRequest) toRequest() analysis.Request {
	return analysis.Request{
		Text:          item.Text,
		CorrelationID: strings.TrimSpace(item.CorrelationID),
		Locale:        strings.TrimSpace(item.Locale),
	}
}

func (h *Handler) analyze(c *gin.Context) {
	var body itemRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	if issues := validateItem("", body, true); len(issues) > 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid feedback", issues)
		return
	}

	out := h.Engine.AnalyzeOne(c.Request.Context(), body.toRequest())
	c.Set(middleware.CorrelationIDKey, out.CorrelationID)
	c.Set(middleware.MethodUsedKey, string(out.MethodUsed))
	respond.OK(c, out)
}

func (h *Handler) analyzeBatch(c *gin.Context) {
	var body batchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	if len(body.Items) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "items must not be empty", []fieldIssue{{Field: "items", Issue: "required"}})
		return
	}
	if maxItems := h.Pipeline.BatchMaxItems; maxItems > 0 && len(body.Items) > maxItems {
		respond.Error(c, http.StatusBadRequest, "validation_error", "too many items", gin.H{"maxItems": maxItems})
		return
	}

	var issues []fieldIssue
	reqs := make([]analysis.Request, len(body.Items))
	for i, item := range body.Items {
		issues = append(issues, validateItem("items["+strconv.Itoa(i)+"].", item, false)...)
		reqs[i] = item.toRequest()
	}
	if len(issues) > 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid feedback", issues)
		return
	}

	concurrency := body.MaxConcurrency
	if limit := h.Pipeline.BatchMaxConcurrency; limit > 0 && (concurrency <= 0 || concurrency > limit) {
		concurrency = limit
	}

	ctx := c.Request.Context()
	if h.Pipeline.BatchDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Pipeline.BatchDeadline)
		defer cancel()
	}

	results := h.Engine.AnalyzeBatch(ctx, reqs, concurrency)
	c.Set(middleware.BatchSizeKey, len(reqs))
	respond.OK(c, gin.H{"outcomes": results})
}

func (h *Handler) enqueue(c *gin.Context) {
	if h.Queue == nil {
		respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "background analysis is not configured", nil)
		return
	}

	var body itemRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	if issues := validateItem("", body, true); len(issues) > 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid feedback", issues)
		return
	}

	req := body.toRequest()
	if req.CorrelationID == "" {
		req.CorrelationID = h.newID()
	}
	c.Set(middleware.CorrelationIDKey, req.CorrelationID)

	msg := queue.NewMessage(req.CorrelationID, req.Text, req.Locale, middleware.RequestIDFromContext(c), h.now())
	if err := h.Queue.Send(c.Request.Context(), msg); err != nil {
		telemetry.Error("feedback.enqueue_failed", map[string]any{
			"correlation_id": req.CorrelationID,
			"error":          err.Error(),
		})
		respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "failed to enqueue feedback", nil)
		return
	}

	telemetry.Info("feedback.enqueued", map[string]any{
		"correlation_id": req.CorrelationID,
		"request_id":     msg.RequestID,
	})
	respond.Accepted(c, gin.H{"correlationId": req.CorrelationID, "status": "queued"})
}

func (h *Handler) getOutcome(c *gin.Context) {
	id := strings.TrimSpace(c.Param("correlationId"))
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "correlation id is required", nil)
		return
	}
	c.Set(middleware.CorrelationIDKey, id)

	rec, err := h.Outcomes.GetByCorrelationID(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, outcomes.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "outcome not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch outcome", nil)
		}
		return
	}
	respond.OK(c, rec)
}

func (h *Handler) listOutcomes(c *gin.Context) {
	limit := defaultOutcomesLimit
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}

	items, err := h.Outcomes.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list outcomes", nil)
		return
	}
	if items == nil {
		items = []outcomes.Record{}
	}
	respond.OK(c, gin.H{"items": items})
}
