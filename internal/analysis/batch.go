package analysis

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"feedback-backend/internal/shared/metrics"
	"feedback-backend/internal/shared/telemetry"
)

// AnalyzeBatch runs every request through AnalyzeOne with at most maxConcurrency
// items in flight. The result has the same length and order as reqs.
//
// The deadline of ctx is the batch deadline: once it passes, no further item is
// started and each remaining item gets an emergency outcome. Items already running
// are detached from ctx and finish under their own per-item deadlines.
func (e *Engine) AnalyzeBatch(ctx context.Context, reqs []Request, maxConcurrency int) []Outcome {
	out := make([]Outcome, len(reqs))
	if len(reqs) == 0 {
		return out
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	metrics.AddBatchItems(len(reqs))

	sem := semaphore.NewWeighted(int64(maxConcurrency))
	var g errgroup.Group
	detached := context.WithoutCancel(ctx)

	for i := range reqs {
		err := ctx.Err()
		if err == nil {
			err = sem.Acquire(ctx, 1)
		}
		if err != nil {
			telemetry.Warn("analysis.batch.deadline", map[string]any{
				"scheduled": i,
				"remaining": len(reqs) - i,
				"error":     err.Error(),
			})
			for j := i; j < len(reqs); j++ {
				out[j] = e.unscheduledOutcome(detached, reqs[j], err)
			}
			break
		}

		i := i
		g.Go(func() error {
			defer sem.Release(1)
			out[i] = e.AnalyzeOne(detached, reqs[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Engine) unscheduledOutcome(ctx context.Context, req Request, cause error) Outcome {
	start := time.Now()
	if req.CorrelationID == "" {
		req.CorrelationID = e.newID()
	}
	metrics.IncBatchDeadline()
	out := e.emergencyOutcome(req, start, []ErrorEntry{{
		Stage:   "batch",
		Kind:    KindTimeout,
		Message: sanitizeError(fmt.Errorf("batch deadline: item not scheduled: %w", cause)),
	}}, nil)
	clampOutcome(&out)
	e.finish(ctx, out)
	return out
}
