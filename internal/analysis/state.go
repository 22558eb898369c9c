package analysis

import (
	"fmt"
	"time"
)

// ProcessingStage is the position of a State in the pipeline. It only moves forward.
type ProcessingStage int

const (
	StageCreated ProcessingStage = iota
	StageNormalized
	StageSentimentDone
	StageCategorizationDone
	StageActionDone
	StageCompleted
	StageFailed
)

func (p ProcessingStage) String() string {
	switch p {
	case StageCreated:
		return "created"
	case StageNormalized:
		return "normalized"
	case StageSentimentDone:
		return "sentiment_done"
	case StageCategorizationDone:
		return "categorization_done"
	case StageActionDone:
		return "action_done"
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(p))
	}
}

// StageStatus is the terminal status of one stage run.
type StageStatus string

const (
	StatusOK        StageStatus = "ok"
	StatusDefaulted StageStatus = "defaulted"
	StatusSkipped   StageStatus = "skipped"
	StatusFailed    StageStatus = "failed"
)

// StageLogEntry records one stage execution.
type StageLogEntry struct {
	Stage      string      `json:"stage"`
	Status     StageStatus `json:"status"`
	DurationMs int64       `json:"durationMs"`
	Attempts   int         `json:"attempts,omitempty"`
}

// ErrorEntry describes a recoverable error for observability.
type ErrorEntry struct {
	Stage   string    `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// State accumulates results for one request. It is owned by a single orchestration
// call and never shared.
type State struct {
	OriginalText   string
	NormalizedText string
	Locale         string
	CorrelationID  string

	Sentiment      *Sentiment
	Categorization *Categorization
	Actions        *Actions

	StageLog []StageLogEntry
	Errors   []ErrorEntry
	Degraded bool

	stage ProcessingStage
}

// NewState creates a State for req in the Created stage.
func NewState(req Request) *State {
	return &State{
		OriginalText:  req.Text,
		Locale:        req.Locale,
		CorrelationID: req.CorrelationID,
		stage:         StageCreated,
	}
}

// Stage returns the current processing stage.
func (s *State) Stage() ProcessingStage {
	return s.stage
}

func (s *State) advance(to ProcessingStage) error {
	if s.stage == StageFailed || s.stage == StageCompleted {
		return fmt.Errorf("state is terminal at %s", s.stage)
	}
	if to <= s.stage {
		return fmt.Errorf("cannot move from %s to %s", s.stage, to)
	}
	s.stage = to
	return nil
}

func (s *State) fail() {
	if s.stage != StageCompleted {
		s.stage = StageFailed
	}
}

func (s *State) setNormalized(text string) error {
	if s.stage != StageCreated {
		return fmt.Errorf("normalize: unexpected stage %s", s.stage)
	}
	s.NormalizedText = text
	return s.advance(StageNormalized)
}

func (s *State) setSentiment(v Sentiment) error {
	if s.stage != StageNormalized {
		return fmt.Errorf("sentiment: unexpected stage %s", s.stage)
	}
	s.Sentiment = &v
	return s.advance(StageSentimentDone)
}

func (s *State) setCategorization(v Categorization) error {
	if s.stage != StageSentimentDone {
		return fmt.Errorf("categorization: unexpected stage %s", s.stage)
	}
	s.Categorization = &v
	return s.advance(StageCategorizationDone)
}

func (s *State) setActions(v Actions) error {
	if s.stage != StageCategorizationDone {
		return fmt.Errorf("actions: unexpected stage %s", s.stage)
	}
	s.Actions = &v
	return s.advance(StageActionDone)
}

func (s *State) logStage(name string, status StageStatus, d time.Duration, attempts int) {
	s.StageLog = append(s.StageLog, StageLogEntry{
		Stage:      name,
		Status:     status,
		DurationMs: d.Milliseconds(),
		Attempts:   attempts,
	})
}

func (s *State) recordError(err *StageError) {
	if err == nil {
		return
	}
	s.Errors = append(s.Errors, err.entry())
}
