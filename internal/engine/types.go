package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelworks/steptrace/internal/belief"
	"github.com/kestrelworks/steptrace/internal/fallback"
	"github.com/kestrelworks/steptrace/internal/monitor"
	"github.com/kestrelworks/steptrace/internal/policy"
)

// #region collaborators

// Cleaner validates and normalizes raw observation text. ok=false means
// reject: the text never reaches the update policy.
type Cleaner interface {
	Clean(raw string) (cleaned string, ok bool)
}

// Matcher resolves cleaned observation text against the reference task steps.
// Candidates come back sorted by similarity, best first; an empty slice is a
// valid no-match response.
type Matcher interface {
	Match(ctx context.Context, text string) ([]policy.Candidate, error)
}

// Answerer is the slower, more capable external fallback. rec carries the
// current belief as context when one exists.
type Answerer interface {
	Answer(ctx context.Context, queryText string, rec *belief.Record) (string, error)
}

// Recorder persists per-observation decisions for diagnostics. Recording
// failures are logged, never propagated.
type Recorder interface {
	RecordDecision(rec DecisionRecord) error
}

// #endregion collaborators

// #region decision-record

// DecisionRecord is one observation's policy decision, for the diagnostics log.
type DecisionRecord struct {
	ObservationID string
	TaskID        string
	StepIndex     int
	Level         belief.Level
	Similarity    float32
	Action        policy.Action
	Reason        string
	CreatedAt     time.Time
}

// #endregion decision-record

// #region query-result

// QueryResult is the engine's answer to one user question.
type QueryResult struct {
	ResponseText string
	UsedFallback bool
	Latency      time.Duration
}

// #endregion query-result

// #region options

// DefaultDegradedMessage is returned when the external answerer is
// unavailable, errors, or times out.
const DefaultDegradedMessage = "I can't answer that right now. Please try again in a moment."

// Options bundles all engine configuration with documented defaults.
type Options struct {
	Policy   policy.Config
	Monitor  monitor.Config
	Fallback fallback.Config
	Limits   belief.Limits

	AnswerTimeout   time.Duration // budget for one external answerer call
	DegradedMessage string        // substituted when the answerer fails
}

// DefaultOptions returns the documented engine defaults.
func DefaultOptions() Options {
	return Options{
		Policy:          policy.DefaultConfig(),
		Monitor:         monitor.DefaultConfig(),
		Fallback:        fallback.DefaultConfig(),
		Limits:          belief.DefaultLimits(),
		AnswerTimeout:   30 * time.Second,
		DegradedMessage: DefaultDegradedMessage,
	}
}

// Validate rejects programmer-error configuration. Fatal at construction.
func (o Options) Validate() error {
	if err := o.Policy.Validate(); err != nil {
		return err
	}
	if err := o.Monitor.Validate(); err != nil {
		return err
	}
	if err := o.Fallback.Validate(); err != nil {
		return err
	}
	if err := o.Limits.Validate(); err != nil {
		return err
	}
	if o.AnswerTimeout <= 0 {
		return fmt.Errorf("engine: answer timeout must be positive, got %s", o.AnswerTimeout)
	}
	if o.DegradedMessage == "" {
		return fmt.Errorf("engine: degraded message must not be empty")
	}
	return nil
}

// #endregion options
