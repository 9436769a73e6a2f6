package policy

import (
	"fmt"

	"github.com/kestrelworks/steptrace/internal/belief"
)

// #region transition-table

type transitionKey struct {
	level belief.Level
	jump  JumpKind
}

type transition func(in Input) Outcome

// transitions makes the update state machine explicit: one cell per
// (confidence level, jump kind) pair. HIGH always commits; MEDIUM commits
// except on large forward jumps, which go through the confirmation guard;
// LOW never touches belief.
var transitions = map[transitionKey]transition{
	{belief.LevelHigh, JumpNewTask}:      commit,
	{belief.LevelHigh, JumpBackwardOrEq}: commit,
	{belief.LevelHigh, JumpSmallForward}: commit,
	{belief.LevelHigh, JumpLargeForward}: commit,

	{belief.LevelMedium, JumpNewTask}:      commit,
	{belief.LevelMedium, JumpBackwardOrEq}: commit,
	{belief.LevelMedium, JumpSmallForward}: commit,
	{belief.LevelMedium, JumpLargeForward}: guardLargeJump,

	{belief.LevelLow, JumpNewTask}:      observeLow,
	{belief.LevelLow, JumpBackwardOrEq}: observeLow,
	{belief.LevelLow, JumpSmallForward}: observeLow,
	{belief.LevelLow, JumpLargeForward}: observeLow,
}

// #endregion transition-table

// #region decide

// Decide is the pure update-policy transition function. It never mutates its
// inputs; the caller applies the returned outcome through the store.
func Decide(in Input) Outcome {
	// Expiry is checked on read, not by a background timer. An expired
	// pending candidate is treated as absent from here on.
	if in.Pending != nil && in.Pending.Expired(in.Now, in.Config.PendingTTL) {
		in.Pending = nil
	}

	if in.Candidate == nil {
		return Outcome{
			Action:      ActionIgnore,
			Jump:        JumpNewTask,
			Reason:      "no match candidates",
			Level:       belief.LevelLow,
			Pending:     in.Pending,
			CountsAsLow: true,
		}
	}

	jump := classifyJump(in.Candidate, in.Current, in.Config)
	out := transitions[transitionKey{in.Level, jump}](in)
	out.Jump = jump
	out.Level = in.Level
	return out
}

// classifyJump compares the candidate against the current belief.
func classifyJump(cand *Candidate, current *belief.Record, cfg Config) JumpKind {
	if current == nil || current.TaskID != cand.TaskID {
		return JumpNewTask
	}
	delta := cand.StepIndex - current.StepIndex
	switch {
	case delta <= 0:
		return JumpBackwardOrEq
	case delta <= cfg.MaxForwardJump:
		return JumpSmallForward
	default:
		return JumpLargeForward
	}
}

// #endregion decide

// #region handlers

// commit replaces the current belief and clears any pending hypothesis.
func commit(in Input) Outcome {
	rec := belief.Record{
		TaskID:     in.Candidate.TaskID,
		StepIndex:  in.Candidate.StepIndex,
		Title:      in.Candidate.Title,
		Level:      in.Level,
		Similarity: in.Candidate.Similarity,
		CreatedAt:  in.Now,
	}
	return Outcome{
		Action: ActionUpdate,
		Reason: fmt.Sprintf("%s confidence match for step %d", in.Level, in.Candidate.StepIndex),
		Record: &rec,
	}
}

// guardLargeJump is the thin guard: a MEDIUM match that skips more than
// MaxForwardJump steps needs a second corroborating observation within the
// pending TTL before it may commit.
func guardLargeJump(in Input) Outcome {
	if in.Pending != nil && in.Pending.Matches(in.Candidate.TaskID, in.Candidate.StepIndex) {
		confirmations := in.Pending.Confirmations + 1
		if confirmations >= in.Config.ConfirmationsRequired {
			out := commit(in)
			out.Reason = fmt.Sprintf("forward jump to step %d confirmed after %d observations",
				in.Candidate.StepIndex, confirmations)
			return out
		}
		p := *in.Pending
		p.Confirmations = confirmations
		return Outcome{
			Action:  ActionObserve,
			Reason:  fmt.Sprintf("forward jump to step %d awaiting confirmation (%d/%d)", in.Candidate.StepIndex, confirmations, in.Config.ConfirmationsRequired),
			Pending: &p,
		}
	}

	// No live matching hypothesis: start (or replace) one.
	p := belief.Pending{
		TaskID:        in.Candidate.TaskID,
		StepIndex:     in.Candidate.StepIndex,
		FirstSeenAt:   in.Now,
		Confirmations: 1,
	}
	return Outcome{
		Action:  ActionObserve,
		Reason:  fmt.Sprintf("forward jump to step %d exceeds limit %d, awaiting confirmation", in.Candidate.StepIndex, in.Config.MaxForwardJump),
		Pending: &p,
	}
}

// observeLow records the observation without touching belief. A LOW match
// carries no trustworthy candidate, so any pending hypothesis survives it;
// the TTL bounds its life regardless.
func observeLow(in Input) Outcome {
	return Outcome{
		Action:      ActionObserve,
		Reason:      "low confidence match",
		Pending:     in.Pending,
		CountsAsLow: true,
	}
}

// #endregion handlers
