package main

import (
	"context"
	"io"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"feedback-backend/internal/analysis"
	"feedback-backend/internal/queue"
	"feedback-backend/internal/shared/telemetry"
)

type cancellingAnalyzer struct {
	cancel context.CancelFunc
}

func (a cancellingAnalyzer) AnalyzeOne(ctx context.Context, req analysis.Request) analysis.Outcome {
	if a.cancel != nil {
		a.cancel()
	}
	return analysis.Outcome{CorrelationID: req.CorrelationID}
}

func body(t *testing.T, msg queue.Message) string {
	t.Helper()
	raw, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(raw)
}

func TestProcessRecordsReportsOnlyRetryableFailures(t *testing.T) {
	defer telemetry.SetOutput(io.Discard)()

	records := []events.SQSMessage{
		{MessageId: "ok", Body: body(t, queue.Message{CorrelationID: "c-1", Text: "fine"})},
		{MessageId: "bad-json", Body: "{nope"},
		{MessageId: "no-text", Body: body(t, queue.Message{CorrelationID: "c-2"})},
	}
	resp := processRecords(context.Background(), cancellingAnalyzer{}, records)
	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("expected no retryable failures, got %+v", resp.BatchItemFailures)
	}
}

func TestProcessRecordsRetriesInterruptedWork(t *testing.T) {
	defer telemetry.SetOutput(io.Discard)()

	ctx, cancel := context.WithCancel(context.Background())
	records := []events.SQSMessage{{MessageId: "m1", Body: body(t, queue.Message{CorrelationID: "c-1", Text: "x"})}}
	resp := processRecords(ctx, cancellingAnalyzer{cancel: cancel}, records)
	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m1" {
		t.Fatalf("expected m1 to be retried, got %+v", resp.BatchItemFailures)
	}
}
