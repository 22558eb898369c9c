package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"feedback-backend/internal/bootstrap"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/metrics"
	"feedback-backend/internal/shared/storage/db"
	"feedback-backend/internal/shared/telemetry"
	"feedback-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	analyzer workerproc.Analyzer
)

func initApp() {
	cfg := config.Load()
	app, err := bootstrap.Build(context.Background(), cfg, db.ProfileLambda)
	if err != nil {
		initErr = err
		return
	}
	analyzer = app.Engine
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processRecords(ctx, analyzer, event.Records), nil
}

// processRecords reports only retryable failures. Payloads that can never
// succeed are logged and acknowledged so they do not cycle until the DLQ.
func processRecords(ctx context.Context, a workerproc.Analyzer, records []events.SQSMessage) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range records {
		fields := map[string]any{"sqs_message_id": record.MessageId}
		out, err := workerproc.HandleMessage(ctx, a, record.Body)
		switch {
		case err == nil:
			fields["correlation_id"] = out.CorrelationID
			fields["method_used"] = string(out.MethodUsed)
			telemetry.Info("worker.feedback.completed", fields)
			metrics.IncWorkerJob("completed")
		case workerproc.Unrecoverable(err):
			fields["error"] = err.Error()
			telemetry.Error("worker.feedback.dropped", fields)
			metrics.IncWorkerJob("dropped")
		default:
			fields["error"] = err.Error()
			telemetry.Error("worker.feedback.failed", fields)
			metrics.IncWorkerJob("failed")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
