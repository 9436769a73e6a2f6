package policy

import (
	"fmt"
	"time"

	"github.com/kestrelworks/steptrace/internal/belief"
)

// #region candidate

// Candidate is the top knowledge-matcher hit for one observation.
type Candidate struct {
	TaskID     string
	StepIndex  int
	Title      string
	Similarity float32
}

// #endregion candidate

// #region action

// Action is what the policy decided to do with an observation.
type Action string

const (
	ActionUpdate  Action = "update"
	ActionObserve Action = "observe"
	ActionIgnore  Action = "ignore"
)

// #endregion action

// #region jump-kind

// JumpKind classifies a candidate's step delta relative to the current belief.
type JumpKind string

const (
	JumpNewTask      JumpKind = "new_task"          // no belief yet for this task
	JumpBackwardOrEq JumpKind = "backward_or_equal" // restart or refinement
	JumpSmallForward JumpKind = "small_forward"     // within the trusted jump range
	JumpLargeForward JumpKind = "large_forward"     // needs confirmation
)

// #endregion jump-kind

// #region config

// Config holds the update-policy thresholds and guard parameters.
type Config struct {
	HighThreshold         float32       // similarity at or above which a match is HIGH
	MediumThreshold       float32       // similarity at or above which a match is MEDIUM
	MaxForwardJump        int           // largest forward step delta a single MEDIUM match may commit
	PendingTTL            time.Duration // how long a forward-jump hypothesis stays alive
	ConfirmationsRequired int           // corroborating observations needed to commit a large jump
}

// DefaultConfig returns the documented policy defaults.
func DefaultConfig() Config {
	return Config{
		HighThreshold:         0.65,
		MediumThreshold:       0.40,
		MaxForwardJump:        2,
		PendingTTL:            10 * time.Second,
		ConfirmationsRequired: 2,
	}
}

// Validate rejects programmer-error configuration. Fatal at construction.
func (c Config) Validate() error {
	if c.HighThreshold < 0 || c.HighThreshold > 1 {
		return fmt.Errorf("policy: high threshold %.3f outside [0,1]", c.HighThreshold)
	}
	if c.MediumThreshold < 0 || c.MediumThreshold > 1 {
		return fmt.Errorf("policy: medium threshold %.3f outside [0,1]", c.MediumThreshold)
	}
	if c.MediumThreshold >= c.HighThreshold {
		return fmt.Errorf("policy: medium threshold %.3f must be below high threshold %.3f",
			c.MediumThreshold, c.HighThreshold)
	}
	if c.MaxForwardJump < 0 {
		return fmt.Errorf("policy: max forward jump must be non-negative, got %d", c.MaxForwardJump)
	}
	if c.PendingTTL <= 0 {
		return fmt.Errorf("policy: pending TTL must be positive, got %s", c.PendingTTL)
	}
	if c.ConfirmationsRequired < 1 {
		return fmt.Errorf("policy: confirmations required must be at least 1, got %d", c.ConfirmationsRequired)
	}
	return nil
}

// #endregion config

// #region input

// Input carries everything Decide needs. Current and Pending come from the
// store snapshot; Candidate is nil when the matcher returned no hits.
type Input struct {
	Candidate *Candidate
	Level     belief.Level
	Current   *belief.Record
	Pending   *belief.Pending
	Now       time.Time
	Config    Config
}

// #endregion input

// #region outcome

// Outcome records what the policy decided and the store changes it implies.
type Outcome struct {
	Action      Action
	Jump        JumpKind
	Reason      string
	Level       belief.Level
	Record      *belief.Record  // non-nil iff Action == ActionUpdate
	Pending     *belief.Pending // desired pending state after this observation
	CountsAsLow bool
}

// Mutation converts the outcome into the store mutation for one observation.
func (o Outcome) Mutation(entry belief.WindowEntry) belief.Mutation {
	return belief.Mutation{
		Record:      o.Record,
		Pending:     o.Pending,
		CountsAsLow: o.CountsAsLow,
		Entry:       entry,
	}
}

// #endregion outcome
