package policy

import (
	"testing"
	"time"

	"github.com/kestrelworks/steptrace/internal/belief"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func cand(step int, sim float32) *Candidate {
	return &Candidate{TaskID: "coffee", StepIndex: step, Title: "step", Similarity: sim}
}

func current(step int) *belief.Record {
	return &belief.Record{TaskID: "coffee", StepIndex: step, Level: belief.LevelHigh, CreatedAt: t0}
}

func decide(c *Candidate, cur *belief.Record, pending *belief.Pending, now time.Time) Outcome {
	cfg := DefaultConfig()
	var level belief.Level
	if c != nil {
		level = Classify(c.Similarity, cfg)
	} else {
		level = belief.LevelLow
	}
	return Decide(Input{Candidate: c, Level: level, Current: cur, Pending: pending, Now: now, Config: cfg})
}

func TestClassifyThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		sim  float32
		want belief.Level
	}{
		{0.80, belief.LevelHigh},
		{0.65, belief.LevelHigh}, // boundary is inclusive
		{0.64, belief.LevelMedium},
		{0.40, belief.LevelMedium},
		{0.39, belief.LevelLow},
		{0.00, belief.LevelLow},
		{-0.5, belief.LevelLow}, // clamped
		{1.5, belief.LevelHigh}, // clamped
	}
	for _, c := range cases {
		if got := Classify(c.sim, cfg); got != c.want {
			t.Fatalf("Classify(%.2f) = %s, want %s", c.sim, got, c.want)
		}
	}
}

func TestHighConfidenceAlwaysCommits(t *testing.T) {
	// HIGH commits regardless of jump size, including large forward jumps.
	for _, step := range []int{1, 3, 9} {
		out := decide(cand(step, 0.9), current(2), nil, t0)
		if out.Action != ActionUpdate {
			t.Fatalf("step %d: expected update, got %s", step, out.Action)
		}
		if out.Record == nil || out.Record.StepIndex != step {
			t.Fatalf("step %d: record not committed", step)
		}
		if out.Pending != nil {
			t.Fatalf("step %d: commit should clear pending", step)
		}
	}
}

func TestHighCommitOnNewTask(t *testing.T) {
	out := decide(cand(5, 0.9), nil, nil, t0)
	if out.Action != ActionUpdate || out.Jump != JumpNewTask {
		t.Fatalf("expected update on new task, got %s/%s", out.Action, out.Jump)
	}
}

func TestMediumSmallForwardCommits(t *testing.T) {
	out := decide(cand(4, 0.5), current(2), nil, t0)
	if out.Action != ActionUpdate || out.Jump != JumpSmallForward {
		t.Fatalf("expected small-forward commit, got %s/%s", out.Action, out.Jump)
	}
}

func TestMediumBackwardCommits(t *testing.T) {
	out := decide(cand(1, 0.5), current(4), nil, t0)
	if out.Action != ActionUpdate || out.Jump != JumpBackwardOrEq {
		t.Fatalf("expected backward commit, got %s/%s", out.Action, out.Jump)
	}
}

func TestMediumLargeForwardStartsPending(t *testing.T) {
	out := decide(cand(7, 0.5), current(2), nil, t0)
	if out.Action != ActionObserve || out.Jump != JumpLargeForward {
		t.Fatalf("expected observe on large jump, got %s/%s", out.Action, out.Jump)
	}
	if out.Record != nil {
		t.Fatal("large jump must not commit on first sight")
	}
	if out.Pending == nil || out.Pending.StepIndex != 7 || out.Pending.Confirmations != 1 {
		t.Fatalf("expected pending step 7 with 1 confirmation, got %+v", out.Pending)
	}
}

func TestMediumLargeForwardConfirms(t *testing.T) {
	// Second matching observation within the TTL commits.
	pending := &belief.Pending{TaskID: "coffee", StepIndex: 7, FirstSeenAt: t0, Confirmations: 1}
	out := decide(cand(7, 0.5), current(2), pending, t0.Add(3*time.Second))
	if out.Action != ActionUpdate {
		t.Fatalf("expected confirmed commit, got %s (%s)", out.Action, out.Reason)
	}
	if out.Record == nil || out.Record.StepIndex != 7 {
		t.Fatal("expected belief at step 7")
	}
	if out.Pending != nil {
		t.Fatal("commit should clear pending")
	}
}

func TestPendingExpiresAndRestarts(t *testing.T) {
	// A matching observation after the TTL starts a fresh hypothesis
	// instead of confirming the dead one.
	pending := &belief.Pending{TaskID: "coffee", StepIndex: 7, FirstSeenAt: t0, Confirmations: 1}
	later := t0.Add(DefaultConfig().PendingTTL + time.Second)
	out := decide(cand(7, 0.5), current(2), pending, later)
	if out.Action != ActionObserve {
		t.Fatalf("expected observe after expiry, got %s", out.Action)
	}
	if out.Pending == nil || out.Pending.Confirmations != 1 {
		t.Fatalf("expected fresh pending with 1 confirmation, got %+v", out.Pending)
	}
	if !out.Pending.FirstSeenAt.Equal(later) {
		t.Fatalf("expected pending restarted at %v, got %v", later, out.Pending.FirstSeenAt)
	}
}

func TestPendingReplacedByDifferentTarget(t *testing.T) {
	pending := &belief.Pending{TaskID: "coffee", StepIndex: 7, FirstSeenAt: t0, Confirmations: 1}
	out := decide(cand(9, 0.5), current(2), pending, t0.Add(time.Second))
	if out.Action != ActionObserve {
		t.Fatalf("expected observe, got %s", out.Action)
	}
	if out.Pending == nil || out.Pending.StepIndex != 9 || out.Pending.Confirmations != 1 {
		t.Fatalf("expected pending replaced with step 9, got %+v", out.Pending)
	}
}

func TestLowNeverTouchesBelief(t *testing.T) {
	pending := &belief.Pending{TaskID: "coffee", StepIndex: 7, FirstSeenAt: t0, Confirmations: 1}
	out := decide(cand(3, 0.2), current(2), pending, t0.Add(time.Second))
	if out.Action != ActionObserve {
		t.Fatalf("expected observe, got %s", out.Action)
	}
	if out.Record != nil {
		t.Fatal("low confidence must not commit")
	}
	if !out.CountsAsLow {
		t.Fatal("low observation must count toward the low streak")
	}
	// A low match is noise, not evidence against the hypothesis.
	if out.Pending == nil || out.Pending.StepIndex != 7 {
		t.Fatalf("expected pending preserved, got %+v", out.Pending)
	}
}

func TestNoCandidateIgnored(t *testing.T) {
	out := decide(nil, current(2), nil, t0)
	if out.Action != ActionIgnore {
		t.Fatalf("expected ignore, got %s", out.Action)
	}
	if out.Level != belief.LevelLow || !out.CountsAsLow {
		t.Fatal("no-match must be recorded as a low observation")
	}
}

func TestDecideIdempotent(t *testing.T) {
	// Same input, same output: Decide holds no internal state.
	pending := &belief.Pending{TaskID: "coffee", StepIndex: 7, FirstSeenAt: t0, Confirmations: 1}
	in := Input{
		Candidate: cand(7, 0.5),
		Level:     belief.LevelMedium,
		Current:   current(2),
		Pending:   pending,
		Now:       t0.Add(time.Second),
		Config:    DefaultConfig(),
	}
	a := Decide(in)
	b := Decide(in)
	if a.Action != b.Action || a.Reason != b.Reason {
		t.Fatalf("Decide not deterministic: %s vs %s", a.Action, b.Action)
	}
	if pending.Confirmations != 1 {
		t.Fatalf("Decide mutated its input pending: %d", pending.Confirmations)
	}
}

func TestTaskSwitchIsNewTask(t *testing.T) {
	c := &Candidate{TaskID: "sandwich", StepIndex: 1, Similarity: 0.5}
	out := decide(c, current(5), nil, t0)
	if out.Jump != JumpNewTask || out.Action != ActionUpdate {
		t.Fatalf("expected new-task commit, got %s/%s", out.Action, out.Jump)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	bad := DefaultConfig()
	bad.MediumThreshold = 0.7 // above high
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error when medium >= high")
	}
	bad = DefaultConfig()
	bad.PendingTTL = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for zero TTL")
	}
}
