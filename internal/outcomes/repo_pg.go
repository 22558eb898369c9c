package outcomes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Save upserts the outcome. Summary columns are denormalized for dashboards; the
// full outcome lives in the JSONB column.
func (r *PGRepo) Save(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO analysis_outcomes (
	correlation_id, method_used, degraded, sentiment_score, emotion_label,
	primary_category, urgency, processing_time_ms, outcome, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (correlation_id) DO UPDATE SET
	method_used = EXCLUDED.method_used,
	degraded = EXCLUDED.degraded,
	sentiment_score = EXCLUDED.sentiment_score,
	emotion_label = EXCLUDED.emotion_label,
	primary_category = EXCLUDED.primary_category,
	urgency = EXCLUDED.urgency,
	processing_time_ms = EXCLUDED.processing_time_ms,
	outcome = EXCLUDED.outcome,
	updated_at = now()`
	payload, err := json.Marshal(rec.Outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	out := rec.Outcome
	_, err = r.DB.ExecContext(ctx, query,
		rec.CorrelationID,
		string(out.MethodUsed),
		out.Degraded,
		out.Sentiment.Score,
		out.Sentiment.EmotionLabel,
		out.Categorization.PrimaryCategory,
		string(out.Categorization.Urgency),
		out.ProcessingTimeMs,
		payload,
		rec.CreatedAt,
	)
	return err
}

// GetByCorrelationID returns the stored outcome or ErrNotFound.
func (r *PGRepo) GetByCorrelationID(ctx context.Context, correlationID string) (Record, error) {
	const query = `
SELECT correlation_id, outcome, created_at
FROM analysis_outcomes
WHERE correlation_id = $1
LIMIT 1`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, correlationID))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// ListRecent returns the newest outcomes first.
func (r *PGRepo) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	const query = `
SELECT correlation_id, outcome, created_at
FROM analysis_outcomes
ORDER BY created_at DESC
LIMIT $1`
	rows, err := r.DB.QueryContext(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var payload []byte
	if err := row.Scan(&rec.CorrelationID, &payload, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal(payload, &rec.Outcome); err != nil {
		return Record{}, fmt.Errorf("decode outcome %s: %w", rec.CorrelationID, err)
	}
	return rec, nil
}
