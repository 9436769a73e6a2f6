package belief

import "time"

// #region level

// Level is the three-tier confidence classification of a matched observation.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// AtLeastMedium reports whether the level is trusted enough to become belief.
func (l Level) AtLeastMedium() bool {
	return l == LevelHigh || l == LevelMedium
}

// #endregion level

// #region record

// Record is the authoritative current belief about task and step,
// with full provenance from the observation that produced it.
type Record struct {
	TaskID     string
	StepIndex  int
	Title      string
	Level      Level
	Similarity float32
	CreatedAt  time.Time
}

// #endregion record

// #region window-entry

// WindowEntry is the minimal per-observation footprint kept in the sliding
// window. No raw text, no match metadata — just enough for staleness checks.
type WindowEntry struct {
	ObservedAt time.Time
	Level      Level
	TaskID     string
	StepIndex  int
}

// windowEntryOverhead approximates the fixed in-memory cost of one entry:
// timestamp, level header, step index, slice bookkeeping.
const windowEntryOverhead = 48

// EstimatedBytes returns the byte estimate charged against the window budget.
func (e WindowEntry) EstimatedBytes() int {
	return windowEntryOverhead + len(e.TaskID) + len(e.Level)
}

// #endregion window-entry

// #region pending

// Pending is an unconfirmed forward-jump hypothesis. At most one exists at a
// time; it dies on TTL expiry, on a replacing observation, or on confirmation.
type Pending struct {
	TaskID        string
	StepIndex     int
	FirstSeenAt   time.Time
	Confirmations int
}

// Expired reports whether the pending candidate has outlived ttl at now.
func (p Pending) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.FirstSeenAt) > ttl
}

// Matches reports whether a candidate targets the same task and step.
func (p Pending) Matches(taskID string, stepIndex int) bool {
	return p.TaskID == taskID && p.StepIndex == stepIndex
}

// #endregion pending

// #region mutation

// Mutation is the full set of store changes produced by one observation.
// Applied atomically so the two concurrent roles never see a torn update.
type Mutation struct {
	Record      *Record     // non-nil replaces the current belief
	Pending     *Pending    // desired pending state after this observation
	CountsAsLow bool        // increments the consecutive-low counter; otherwise resets it
	Entry       WindowEntry // appended to the sliding window unconditionally
}

// #endregion mutation

// #region stats

// MemoryStats summarizes store occupancy for diagnostics.
type MemoryStats struct {
	WindowSize  int
	WindowBytes int
	HistorySize int
}

// #endregion stats

// #region snapshot

// Snapshot is one atomic read of everything a query needs, taken under the
// store lock before any slow operation begins.
type Snapshot struct {
	Current        *Record
	Pending        *Pending
	LastEntry      *WindowEntry
	ConsecutiveLow int
	Stats          MemoryStats
	TakenAt        time.Time
}

// #endregion snapshot
