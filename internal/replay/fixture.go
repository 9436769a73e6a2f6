// Package replay runs a recorded observation sequence through the update
// policy and the belief store, entirely in memory. Fixtures carry the matcher
// outputs directly, so a replay is deterministic and needs no vector store.
package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kestrelworks/steptrace/internal/policy"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description  string               `json:"description"`
	Config       FixtureConfig        `json:"config"`
	Observations []FixtureObservation `json:"observations"`
}

// FixtureConfig mirrors policy.Config with JSON tags. Zero fields fall back
// to the policy defaults.
type FixtureConfig struct {
	HighThreshold         float32 `json:"high_threshold"`
	MediumThreshold       float32 `json:"medium_threshold"`
	MaxForwardJump        int     `json:"max_forward_jump"`
	PendingTTLSeconds     float64 `json:"pending_ttl_seconds"`
	ConfirmationsRequired int     `json:"confirmations_required"`
}

// FixtureObservation is one recorded matcher outcome. OffsetSeconds is the
// observation time relative to the start of the run; a nil candidate means
// the matcher returned nothing.
type FixtureObservation struct {
	ID             string            `json:"id"`
	OffsetSeconds  float64           `json:"offset_seconds"`
	Candidate      *FixtureCandidate `json:"candidate"`
	ExpectedAction string            `json:"expected_action,omitempty"`
}

// FixtureCandidate mirrors policy.Candidate with JSON tags.
type FixtureCandidate struct {
	TaskID     string  `json:"task_id"`
	StepIndex  int     `json:"step_index"`
	Title      string  `json:"title"`
	Similarity float32 `json:"similarity"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Observations) == 0 {
		return nil, fmt.Errorf("fixture %s has no observations", path)
	}
	return &f, nil
}

// ToPolicyConfig converts a FixtureConfig to a policy.Config, filling
// unset fields from the defaults.
func (fc *FixtureConfig) ToPolicyConfig() policy.Config {
	cfg := policy.DefaultConfig()
	if fc.HighThreshold > 0 {
		cfg.HighThreshold = fc.HighThreshold
	}
	if fc.MediumThreshold > 0 {
		cfg.MediumThreshold = fc.MediumThreshold
	}
	if fc.MaxForwardJump > 0 {
		cfg.MaxForwardJump = fc.MaxForwardJump
	}
	if fc.PendingTTLSeconds > 0 {
		cfg.PendingTTL = time.Duration(fc.PendingTTLSeconds * float64(time.Second))
	}
	if fc.ConfirmationsRequired > 0 {
		cfg.ConfirmationsRequired = fc.ConfirmationsRequired
	}
	return cfg
}

// ToCandidate converts a FixtureCandidate to a policy.Candidate.
func (fc *FixtureCandidate) ToCandidate() *policy.Candidate {
	if fc == nil {
		return nil
	}
	return &policy.Candidate{
		TaskID:     fc.TaskID,
		StepIndex:  fc.StepIndex,
		Title:      fc.Title,
		Similarity: fc.Similarity,
	}
}

// #endregion fixture-loader
