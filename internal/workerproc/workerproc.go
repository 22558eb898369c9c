// Package workerproc turns queued feedback messages into analysis runs. It is
// shared by the long-poll worker and the Lambda handler.
package workerproc

import (
	"context"
	"errors"
	"strings"

	"feedback-backend/internal/analysis"
	"feedback-backend/internal/queue"
	"feedback-backend/internal/shared/util"
)

// Analyzer runs one analysis. *analysis.Engine satisfies it.
type Analyzer interface {
	AnalyzeOne(ctx context.Context, req analysis.Request) analysis.Outcome
}

// MessageMeta captures details useful for logging undecodable payloads.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	return MessageMeta{BodyLen: len(body), BodySHA: util.SHA256Hex(body)}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingText indicates a message without feedback text or correlation id.
type ErrMissingText struct {
	Meta          MessageMeta
	CorrelationID string
	RequestID     string
}

func (e ErrMissingText) Error() string {
	if strings.TrimSpace(e.CorrelationID) == "" {
		return "missing correlation id"
	}
	return "missing feedback text"
}

// ErrProcess indicates the analysis could not be completed for a valid message.
// The message should be redelivered.
type ErrProcess struct {
	CorrelationID string
	RequestID     string
	Err           error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process feedback"
	}
	return "process feedback: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

var errNoAnalyzer = errors.New("analysis engine not configured")

// Unrecoverable reports whether err means the payload can never succeed and
// should be dropped from the queue.
func Unrecoverable(err error) bool {
	var empty ErrEmptyBody
	var decode ErrDecode
	var missing ErrMissingText
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.CorrelationID) == "" || strings.TrimSpace(msg.Text) == "" {
		return msg, meta, ErrMissingText{Meta: meta, CorrelationID: msg.CorrelationID, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// Process runs the analysis for an already-parsed message. Persistence happens
// through the engine's completion hook. A context cancelled while the analysis
// ran yields ErrProcess so the message is retried instead of acknowledged.
func Process(ctx context.Context, a Analyzer, msg queue.Message) (analysis.Outcome, error) {
	if a == nil {
		return analysis.Outcome{}, ErrProcess{CorrelationID: msg.CorrelationID, RequestID: msg.RequestID, Err: errNoAnalyzer}
	}
	out := a.AnalyzeOne(ctx, analysis.Request{
		Text:          msg.Text,
		CorrelationID: msg.CorrelationID,
		Locale:        msg.Locale,
	})
	if err := ctx.Err(); err != nil {
		return out, ErrProcess{CorrelationID: msg.CorrelationID, RequestID: msg.RequestID, Err: err}
	}
	return out, nil
}

// HandleMessage parses body and processes it.
func HandleMessage(ctx context.Context, a Analyzer, body string) (analysis.Outcome, error) {
	msg, _, err := ParseMessage(body)
	if err != nil {
		return analysis.Outcome{}, err
	}
	return Process(ctx, a, msg)
}
