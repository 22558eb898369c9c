// Package outcomes stores finished analysis outcomes by correlation id.
package outcomes

import (
	"context"
	"errors"
	"time"

	"feedback-backend/internal/analysis"
)

var ErrNotFound = errors.New("not found")

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Record is one stored outcome.
type Record struct {
	CorrelationID string           `json:"correlationId"`
	Outcome       analysis.Outcome `json:"outcome"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// Repo defines persistence operations for outcomes.
type Repo interface {
	// Save inserts or replaces the record for its correlation id.
	Save(ctx context.Context, rec Record) error
	GetByCorrelationID(ctx context.Context, correlationID string) (Record, error)
	ListRecent(ctx context.Context, limit int) ([]Record, error)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
