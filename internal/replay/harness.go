package replay

import (
	"time"

	"github.com/kestrelworks/steptrace/internal/belief"
	"github.com/kestrelworks/steptrace/internal/policy"
)

// #region types

// Result captures the outcome of replaying one observation.
type Result struct {
	ObservationID string
	At            time.Time
	Action        policy.Action
	Jump          policy.JumpKind
	Level         belief.Level
	Reason        string

	// ExpectedAction is copied from the fixture; Matched reports whether the
	// decided action agreed with it. Matched is true when no expectation was
	// recorded.
	ExpectedAction string
	Matched        bool

	// BeliefAfter is the committed belief after this observation, nil while
	// no update has been accepted yet.
	BeliefAfter *belief.Record
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalObservations int
	Updates           int
	Observes          int
	Ignores           int
	Mismatches        int
	FinalBelief       *belief.Record
	FinalStats        belief.MemoryStats
}

// #endregion types

// #region replay

// Replay runs every fixture observation through the policy and the store in
// order. Observation times are start plus each offset, so pending expiry
// behaves exactly as it would have live.
func Replay(fix *Fixture, start time.Time) ([]Result, Summary, error) {
	cfg := fix.Config.ToPolicyConfig()
	if err := cfg.Validate(); err != nil {
		return nil, Summary{}, err
	}
	store, err := belief.NewStore(belief.DefaultLimits())
	if err != nil {
		return nil, Summary{}, err
	}
	results := make([]Result, 0, len(fix.Observations))

	for _, obs := range fix.Observations {
		now := start.Add(time.Duration(obs.OffsetSeconds * float64(time.Second)))
		snap := store.Snapshot()

		cand := obs.Candidate.ToCandidate()
		var level belief.Level
		if cand != nil {
			level = policy.Classify(cand.Similarity, cfg)
		} else {
			level = belief.LevelLow
		}

		out := policy.Decide(policy.Input{
			Candidate: cand,
			Level:     level,
			Current:   snap.Current,
			Pending:   snap.Pending,
			Now:       now,
			Config:    cfg,
		})

		entry := belief.WindowEntry{ObservedAt: now, Level: out.Level}
		if cand != nil {
			entry.TaskID = cand.TaskID
			entry.StepIndex = cand.StepIndex
		}
		store.Apply(out.Mutation(entry))

		r := Result{
			ObservationID:  obs.ID,
			At:             now,
			Action:         out.Action,
			Jump:           out.Jump,
			Level:          out.Level,
			Reason:         out.Reason,
			ExpectedAction: obs.ExpectedAction,
			Matched:        obs.ExpectedAction == "" || obs.ExpectedAction == string(out.Action),
		}
		if rec, ok := store.Current(); ok {
			r.BeliefAfter = &rec
		}
		results = append(results, r)
	}

	return results, Summarize(results, store), nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result, store *belief.Store) Summary {
	s := Summary{
		TotalObservations: len(results),
		FinalStats:        store.Stats(),
	}
	if rec, ok := store.Current(); ok {
		s.FinalBelief = &rec
	}
	for _, r := range results {
		switch r.Action {
		case policy.ActionUpdate:
			s.Updates++
		case policy.ActionObserve:
			s.Observes++
		case policy.ActionIgnore:
			s.Ignores++
		}
		if !r.Matched {
			s.Mismatches++
		}
	}
	return s
}

// #endregion replay
