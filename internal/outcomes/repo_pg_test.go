package outcomes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"feedback-backend/internal/analysis"
)

func sampleOutcome(id string) analysis.Outcome {
	return analysis.Outcome{
		CorrelationID: id,
		Sentiment: analysis.Sentiment{
			Score:        -0.6,
			EmotionLabel: "frustration",
			Intensity:    analysis.LevelMedium,
			Confidence:   0.8,
		},
		Categorization: analysis.Categorization{
			PrimaryCategory:     "delivery",
			SecondaryCategories: []string{},
			Topics:              []string{"late"},
			Urgency:             analysis.LevelHigh,
			RequiresAction:      true,
			CustomerType:        "unknown",
			Confidence:          0.7,
		},
		Actions: analysis.Actions{
			Immediate:  []string{"Apologize"},
			FollowUp:   []string{},
			Prevention: []string{},
		},
		MethodUsed:       analysis.MethodAgentPipeline,
		Degraded:         true,
		ProcessingTimeMs: 1234,
	}
}

func newMock(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoSaveUpsertsSummaryColumns(t *testing.T) {
	repo, mock := newMock(t)
	rec := Record{CorrelationID: "c-1", Outcome: sampleOutcome("c-1"), CreatedAt: time.Now().UTC()}

	mock.ExpectExec("INSERT INTO analysis_outcomes").
		WithArgs(
			"c-1",
			"agent_pipeline",
			true,
			-0.6,
			"frustration",
			"delivery",
			"high",
			int64(1234),
			sqlmock.AnyArg(), // outcome
			sqlmock.AnyArg(), // created_at
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByCorrelationID(t *testing.T) {
	repo, mock := newMock(t)
	payload, err := json.Marshal(sampleOutcome("c-2"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("SELECT correlation_id, outcome, created_at").
		WithArgs("c-2").
		WillReturnRows(sqlmock.NewRows([]string{"correlation_id", "outcome", "created_at"}).
			AddRow("c-2", payload, created))

	rec, err := repo.GetByCorrelationID(context.Background(), "c-2")
	if err != nil {
		t.Fatalf("GetByCorrelationID: %v", err)
	}
	if rec.Outcome.Categorization.PrimaryCategory != "delivery" || !rec.CreatedAt.Equal(created) {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestPGRepoGetByCorrelationIDNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("SELECT correlation_id, outcome, created_at").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByCorrelationID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListRecentClampsLimit(t *testing.T) {
	repo, mock := newMock(t)
	payload, _ := json.Marshal(sampleOutcome("c-3"))
	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs(maxListLimit).
		WillReturnRows(sqlmock.NewRows([]string{"correlation_id", "outcome", "created_at"}).
			AddRow("c-3", payload, time.Now().UTC()))

	items, err := repo.ListRecent(context.Background(), 5000)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(items) != 1 || items[0].CorrelationID != "c-3" {
		t.Fatalf("unexpected items %+v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
