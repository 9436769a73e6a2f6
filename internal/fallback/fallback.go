// Package fallback decides whether a user question is answered by the
// template responder or handed to the slower external answerer. It only
// decides; the engine performs the external call.
package fallback

import (
	"fmt"

	"github.com/kestrelworks/steptrace/internal/belief"
	"github.com/kestrelworks/steptrace/internal/monitor"
	"github.com/kestrelworks/steptrace/internal/query"
)

// #region signal

// SignalType enumerates the conditions that force a fallback.
type SignalType string

const (
	SignalNoRecord     SignalType = "no_record"
	SignalUnknownQuery SignalType = "unknown_query"
	SignalWeakQuery    SignalType = "weak_query_confidence"
	SignalEmptyRecord  SignalType = "empty_record"
	SignalStaleBelief  SignalType = "stale_belief"
)

// Signal is one detected fallback condition.
type Signal struct {
	Type   SignalType
	Detail string
}

// #endregion signal

// #region config

// Config holds the routing thresholds.
type Config struct {
	MinQueryConfidence float32 // template answers require at least this classification confidence
}

// DefaultConfig returns the documented routing defaults.
func DefaultConfig() Config {
	return Config{MinQueryConfidence: 0.40}
}

// Validate rejects programmer-error configuration.
func (c Config) Validate() error {
	if c.MinQueryConfidence < 0 || c.MinQueryConfidence > 1 {
		return fmt.Errorf("fallback: min query confidence %.3f outside [0,1]", c.MinQueryConfidence)
	}
	return nil
}

// #endregion config

// #region decision

// Decision is the routing verdict with the conditions that produced it.
type Decision struct {
	UseFallback bool
	Signals     []Signal
}

// Decide combines the query classification, the current belief, and the
// recent-observation status into a binary routing decision. Any single
// signal is enough to route to fallback; all are collected for logging.
func Decide(class query.Classification, rec *belief.Record, st monitor.Status, cfg Config) Decision {
	var signals []Signal

	if rec == nil {
		signals = append(signals, Signal{
			Type:   SignalNoRecord,
			Detail: "no complete record exists yet",
		})
	}
	if class.Type == query.TypeUnknown {
		signals = append(signals, Signal{
			Type:   SignalUnknownQuery,
			Detail: "query did not match any known intent",
		})
	}
	if class.Confidence < cfg.MinQueryConfidence {
		signals = append(signals, Signal{
			Type:   SignalWeakQuery,
			Detail: fmt.Sprintf("classification confidence %.2f below %.2f", class.Confidence, cfg.MinQueryConfidence),
		})
	}
	if rec != nil && rec.StepIndex < 1 && rec.Title == "" {
		signals = append(signals, Signal{
			Type:   SignalEmptyRecord,
			Detail: "record has neither a step index nor a matched title",
		})
	}
	if st.FallbackRecommended {
		detail := "recent observations are unreliable"
		if len(st.Reasons) > 0 {
			detail = st.Reasons[0]
		}
		signals = append(signals, Signal{Type: SignalStaleBelief, Detail: detail})
	}

	return Decision{UseFallback: len(signals) > 0, Signals: signals}
}

// #endregion decision
