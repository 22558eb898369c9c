package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"feedback-backend/internal/bootstrap"
	"feedback-backend/internal/queue"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/metrics"
	"feedback-backend/internal/shared/storage/db"
	"feedback-backend/internal/shared/telemetry"
	"feedback-backend/internal/workerproc"
)

const (
	defaultVisibilitySeconds  = 300
	defaultShutdownTimeoutSec = 30
	receiveBatchSize          = 10
	receiveWaitSeconds        = 20
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func main() {
	cfg := config.Load()
	if cfg.QueueURL == "" {
		log.Fatal("FB_SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibility := envInt("FB_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	shutdownTimeout := time.Duration(envInt("FB_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	client, err := queue.LoadSQS(ctx)
	if err != nil {
		log.Fatalf("load sqs client: %v", err)
	}

	app, err := bootstrap.Build(ctx, cfg, db.ProfileWorker)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	if app.DB != nil {
		defer app.DB.Close()
	}

	log.Printf("worker started queue=%s concurrency=%d visibility=%ds", cfg.QueueURL, cfg.WorkerConcurrency, visibility)
	w := &worker{
		client:      client,
		queueURL:    cfg.QueueURL,
		analyzer:    app.Engine,
		concurrency: cfg.WorkerConcurrency,
		visibility:  int32(visibility),
	}
	w.run(ctx)

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	if !w.wait(shutdownTimeout) {
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

type worker struct {
	client      sqsAPI
	queueURL    string
	analyzer    workerproc.Analyzer
	concurrency int
	visibility  int32

	wg sync.WaitGroup
}

// run polls until ctx is cancelled. Jobs already started keep running on a
// context detached from ctx so shutdown lets them finish and acknowledge.
func (w *worker) run(ctx context.Context) {
	sem := make(chan struct{}, max(1, w.concurrency))
	jobCtx := context.WithoutCancel(ctx)

	for ctx.Err() == nil {
		resp, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.queueURL),
			MaxNumberOfMessages: receiveBatchSize,
			WaitTimeSeconds:     receiveWaitSeconds,
			VisibilityTimeout:   w.visibility,
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
				sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
			},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				// Unstarted messages become visible again after the timeout.
				return
			case sem <- struct{}{}:
			}
			metrics.IncWorkerJob("received")
			w.wg.Add(1)
			go func(m sqstypes.Message) {
				defer w.wg.Done()
				defer func() { <-sem }()
				handleMessage(jobCtx, w.client, w.queueURL, w.analyzer, m)
			}(msg)
		}
	}
}

func (w *worker) wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func handleMessage(ctx context.Context, client sqsAPI, queueURL string, a workerproc.Analyzer, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, decoded.CorrelationID, decoded.RequestID)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.feedback.unrecoverable", fields)
		if deleteMessage(ctx, client, queueURL, msg, fields) {
			metrics.IncWorkerJob("dropped")
		}
		return
	}

	telemetry.Info("worker.feedback.received", baseFields(msg, decoded.CorrelationID, decoded.RequestID))

	out, err := workerproc.Process(ctx, a, decoded)
	if err != nil {
		fields := baseFields(msg, decoded.CorrelationID, decoded.RequestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.feedback.failed", fields)
		metrics.IncWorkerJob("failed")
		return
	}

	fields := baseFields(msg, decoded.CorrelationID, decoded.RequestID)
	fields["method_used"] = string(out.MethodUsed)
	fields["degraded"] = out.Degraded
	if deleteMessage(ctx, client, queueURL, msg, fields) {
		telemetry.Info("worker.feedback.completed", fields)
		metrics.IncWorkerJob("completed")
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, fields map[string]any) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields["delete_error"] = "missing receipt handle"
		telemetry.Error("worker.feedback.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields["delete_error"] = err.Error()
		telemetry.Error("worker.feedback.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, correlationID, requestID string) map[string]any {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if correlationID != "" {
		fields["correlation_id"] = correlationID
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	raw := msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}
