package monitor

import (
	"testing"
	"time"

	"github.com/kestrelworks/steptrace/internal/belief"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func snapshot(beliefAge, obsAge time.Duration, lastLevel belief.Level, lows int) belief.Snapshot {
	snap := belief.Snapshot{ConsecutiveLow: lows, TakenAt: t0}
	if beliefAge >= 0 {
		snap.Current = &belief.Record{
			TaskID: "coffee", StepIndex: 2, Level: belief.LevelHigh,
			CreatedAt: t0.Add(-beliefAge),
		}
	}
	if obsAge >= 0 {
		snap.LastEntry = &belief.WindowEntry{ObservedAt: t0.Add(-obsAge), Level: lastLevel}
	}
	return snap
}

func TestFreshBeliefNoFallback(t *testing.T) {
	snap := snapshot(2*time.Second, 1*time.Second, belief.LevelHigh, 0)
	st := Compute(snap, 0, DefaultConfig())
	if st.FallbackRecommended {
		t.Fatalf("fresh belief should not recommend fallback: %v", st.Reasons)
	}
	if st.SecondsSinceLastUpdate == nil || *st.SecondsSinceLastUpdate != 2 {
		t.Fatalf("expected 2s since update, got %v", st.SecondsSinceLastUpdate)
	}
	if st.SecondsSinceLastObservation == nil || *st.SecondsSinceLastObservation != 1 {
		t.Fatalf("expected 1s since observation, got %v", st.SecondsSinceLastObservation)
	}
}

func TestEmptyStore(t *testing.T) {
	st := Compute(belief.Snapshot{TakenAt: t0}, 0, DefaultConfig())
	if st.SecondsSinceLastUpdate != nil || st.SecondsSinceLastObservation != nil {
		t.Fatal("expected nil ages before any observation")
	}
	if st.FallbackRecommended {
		t.Fatal("an empty store has nothing to be stale about")
	}
}

func TestStaleBeliefRecommendsFallback(t *testing.T) {
	// Belief committed 20s ago against a 15s TTL: the update policy kept the
	// old belief through low matches, and the monitor must surface that.
	snap := snapshot(20*time.Second, 1*time.Second, belief.LevelLow, 2)
	st := Compute(snap, 15*time.Second, DefaultConfig())
	if !st.FallbackRecommended {
		t.Fatal("expected fallback recommendation for stale belief")
	}
}

func TestCallerTTLOverridesDefault(t *testing.T) {
	snap := snapshot(10*time.Second, 1*time.Second, belief.LevelHigh, 0)

	// Within the default 15s TTL.
	if st := Compute(snap, 0, DefaultConfig()); st.FallbackRecommended {
		t.Fatalf("10s-old belief within default TTL: %v", st.Reasons)
	}
	// Stale against a caller-supplied 5s TTL.
	if st := Compute(snap, 5*time.Second, DefaultConfig()); !st.FallbackRecommended {
		t.Fatal("expected staleness against 5s TTL")
	}
}

func TestConsecutiveLowThreshold(t *testing.T) {
	cfg := DefaultConfig()

	snap := snapshot(2*time.Second, 1*time.Second, belief.LevelHigh, cfg.ConsecutiveLowThreshold-1)
	if st := Compute(snap, 0, cfg); st.FallbackRecommended {
		t.Fatalf("below threshold should not trigger: %v", st.Reasons)
	}

	snap = snapshot(2*time.Second, 1*time.Second, belief.LevelHigh, cfg.ConsecutiveLowThreshold)
	if st := Compute(snap, 0, cfg); !st.FallbackRecommended {
		t.Fatal("expected low-streak recommendation at threshold")
	}
}

func TestLastObservationLow(t *testing.T) {
	snap := snapshot(2*time.Second, 1*time.Second, belief.LevelLow, 1)
	st := Compute(snap, 0, DefaultConfig())
	if !st.FallbackRecommended {
		t.Fatal("expected recommendation after a low observation")
	}
	if st.LastLevel != belief.LevelLow {
		t.Fatalf("expected last level low, got %s", st.LastLevel)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	bad := Config{ConsecutiveLowThreshold: 0, DefaultTTL: time.Second}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for zero threshold")
	}
}
