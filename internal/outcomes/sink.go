package outcomes

import (
	"context"
	"fmt"
	"time"

	"feedback-backend/internal/analysis"
)

// Sink adapts a Repo to analysis.CompletionHook.
type Sink struct {
	repo Repo
	now  func() time.Time
}

// NewSink constructs a Sink writing to repo.
func NewSink(repo Repo) *Sink {
	return &Sink{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// OnComplete stores the outcome. It has the analysis.CompletionHook signature.
func (s *Sink) OnComplete(ctx context.Context, correlationID string, out analysis.Outcome) error {
	if s == nil || s.repo == nil {
		return nil
	}
	if correlationID == "" {
		return fmt.Errorf("save outcome: empty correlation id")
	}
	rec := Record{
		CorrelationID: correlationID,
		Outcome:       out,
		CreatedAt:     s.now(),
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		return fmt.Errorf("save outcome %s: %w", correlationID, err)
	}
	return nil
}

// Hook returns OnComplete as an analysis.CompletionHook.
func (s *Sink) Hook() analysis.CompletionHook {
	return s.OnComplete
}
