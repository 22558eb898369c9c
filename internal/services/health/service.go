// Package health reports whether the service's dependencies are usable.
package health

import (
	"context"
	"time"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Report is the health payload.
type Report struct {
	OK          bool   `json:"ok"`
	Database    string `json:"database"`
	Queue       string `json:"queue"`
	LLMProvider string `json:"llmProvider"`
}

// Service encapsulates health checks.
type Service struct {
	DB          Pinger
	QueueReady  bool
	LLMProvider string
}

// NewService constructs a health service. db may be nil for in-memory mode.
func NewService(db Pinger, queueReady bool, llmProvider string) *Service {
	return &Service{DB: db, QueueReady: queueReady, LLMProvider: llmProvider}
}

// Status checks the database and reports static dependency state. Only a
// failing database ping makes the service unhealthy: the analysis engine
// still answers through its fallback tiers without a language model.
func (s *Service) Status(ctx context.Context) Report {
	r := Report{OK: true, Database: "memory", Queue: "disabled", LLMProvider: s.LLMProvider}
	if r.LLMProvider == "" {
		r.LLMProvider = "none"
	}
	if s.QueueReady {
		r.Queue = "sqs"
	}
	if s.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := s.DB.PingContext(pingCtx); err != nil {
			r.OK = false
			r.Database = "unreachable"
		} else {
			r.Database = "postgres"
		}
	}
	return r
}
