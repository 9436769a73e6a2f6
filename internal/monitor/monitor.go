// Package monitor derives a point-in-time staleness and quality snapshot from
// the belief store. It exists so that a stale complete record is never served
// as fact: the update policy correctly refuses to change belief on LOW
// observations, and that refusal must be visible to query routing.
package monitor

import (
	"fmt"
	"time"

	"github.com/kestrelworks/steptrace/internal/belief"
)

// #region config

// Config holds staleness thresholds.
type Config struct {
	ConsecutiveLowThreshold int           // low streak that flags the belief as untrustworthy
	DefaultTTL              time.Duration // belief age limit when the caller supplies none
}

// DefaultConfig returns the documented monitor defaults.
func DefaultConfig() Config {
	return Config{
		ConsecutiveLowThreshold: 3,
		DefaultTTL:              15 * time.Second,
	}
}

// Validate rejects programmer-error configuration.
func (c Config) Validate() error {
	if c.ConsecutiveLowThreshold < 1 {
		return fmt.Errorf("monitor: consecutive low threshold must be at least 1, got %d", c.ConsecutiveLowThreshold)
	}
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("monitor: default TTL must be positive, got %s", c.DefaultTTL)
	}
	return nil
}

// #endregion config

// #region status

// Status is the point-in-time recent-observation health report.
type Status struct {
	SecondsSinceLastUpdate      *float64 // nil before the first complete record
	SecondsSinceLastObservation *float64 // nil before the first observation
	LastLevel                   belief.Level
	ConsecutiveLow              int
	FallbackRecommended         bool
	Reasons                     []string // why fallback was recommended, empty otherwise
}

// #endregion status

// #region compute

// Compute builds a Status from one store snapshot in O(1). ttl bounds the age
// of the current belief; a non-positive ttl falls back to the configured
// default.
func Compute(snap belief.Snapshot, ttl time.Duration, cfg Config) Status {
	if ttl <= 0 {
		ttl = cfg.DefaultTTL
	}

	st := Status{ConsecutiveLow: snap.ConsecutiveLow}

	if snap.Current != nil {
		age := snap.TakenAt.Sub(snap.Current.CreatedAt).Seconds()
		if age < 0 {
			age = 0
		}
		st.SecondsSinceLastUpdate = &age
	}
	if snap.LastEntry != nil {
		age := snap.TakenAt.Sub(snap.LastEntry.ObservedAt).Seconds()
		if age < 0 {
			age = 0
		}
		st.SecondsSinceLastObservation = &age
		st.LastLevel = snap.LastEntry.Level
	}

	if st.LastLevel == belief.LevelLow {
		st.Reasons = append(st.Reasons, "last observation was low confidence")
	}
	if st.SecondsSinceLastUpdate != nil && *st.SecondsSinceLastUpdate > ttl.Seconds() {
		st.Reasons = append(st.Reasons,
			fmt.Sprintf("belief is %.1fs old, ttl %.1fs", *st.SecondsSinceLastUpdate, ttl.Seconds()))
	}
	if snap.ConsecutiveLow >= cfg.ConsecutiveLowThreshold {
		st.Reasons = append(st.Reasons,
			fmt.Sprintf("%d consecutive low confidence observations", snap.ConsecutiveLow))
	}
	st.FallbackRecommended = len(st.Reasons) > 0

	return st
}

// #endregion compute
