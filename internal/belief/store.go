package belief

import (
	"fmt"
	"sync"
	"time"
)

// #region limits

// Limits bounds the two memory stores.
type Limits struct {
	HistoryLimit   int // complete-record history depth
	WindowMaxCount int // sliding window entry cap
	WindowMaxBytes int // sliding window byte budget
}

// DefaultLimits returns the documented store bounds.
func DefaultLimits() Limits {
	return Limits{
		HistoryLimit:   10,
		WindowMaxCount: 30,
		WindowMaxBytes: 1 << 20, // 1 MiB
	}
}

// Validate rejects non-positive bounds. Misconfiguration is fatal at
// construction, never at runtime.
func (l Limits) Validate() error {
	if l.HistoryLimit <= 0 {
		return fmt.Errorf("belief: history limit must be positive, got %d", l.HistoryLimit)
	}
	if l.WindowMaxCount <= 0 {
		return fmt.Errorf("belief: window max count must be positive, got %d", l.WindowMaxCount)
	}
	if l.WindowMaxBytes <= 0 {
		return fmt.Errorf("belief: window byte budget must be positive, got %d", l.WindowMaxBytes)
	}
	return nil
}

// #endregion limits

// #region store-struct

// Store owns the dual memory: the single current belief with its bounded
// history, and the comprehensive sliding window of every observation.
// All mutation goes through Apply under one mutex; readers take atomic
// snapshots and never observe a partially applied update.
type Store struct {
	mu sync.Mutex

	current *Record
	history []Record // newest first
	pending *Pending

	window      []WindowEntry // oldest first
	windowBytes int

	consecutiveLow int

	limits Limits
}

// NewStore creates a Store with the given bounds.
func NewStore(limits Limits) (*Store, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &Store{limits: limits}, nil
}

// #endregion store-struct

// #region apply

// Apply commits one observation's outcome: the window entry always lands,
// the belief and pending candidate change only as the mutation directs.
func (s *Store) Apply(m Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendEntryLocked(m.Entry)

	if m.Record != nil {
		if s.current != nil {
			s.pushHistoryLocked(*s.current)
		}
		rec := *m.Record
		s.current = &rec
	}

	if m.Pending != nil {
		p := *m.Pending
		s.pending = &p
	} else {
		s.pending = nil
	}

	if m.CountsAsLow {
		s.consecutiveLow++
	} else {
		s.consecutiveLow = 0
	}
}

func (s *Store) pushHistoryLocked(rec Record) {
	s.history = append([]Record{rec}, s.history...)
	if len(s.history) > s.limits.HistoryLimit {
		s.history = s.history[:s.limits.HistoryLimit]
	}
}

func (s *Store) appendEntryLocked(e WindowEntry) {
	s.window = append(s.window, e)
	s.windowBytes += e.EstimatedBytes()
	for len(s.window) > 0 &&
		(len(s.window) > s.limits.WindowMaxCount || s.windowBytes > s.limits.WindowMaxBytes) {
		s.windowBytes -= s.window[0].EstimatedBytes()
		s.window = s.window[1:]
	}
}

// #endregion apply

// #region readers

// Current returns a copy of the current belief, if any.
func (s *Store) Current() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Record{}, false
	}
	return *s.current, true
}

// History returns the retained complete records, newest first.
func (s *Store) History() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.history))
	copy(out, s.history)
	return out
}

// Window returns the sliding window entries, oldest first.
func (s *Store) Window() []WindowEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WindowEntry, len(s.window))
	copy(out, s.window)
	return out
}

// Stats reports current store occupancy.
func (s *Store) Stats() MemoryStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Store) statsLocked() MemoryStats {
	return MemoryStats{
		WindowSize:  len(s.window),
		WindowBytes: s.windowBytes,
		HistorySize: len(s.history),
	}
}

// Snapshot takes one atomic view of the store for the query path.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ConsecutiveLow: s.consecutiveLow,
		Stats:          s.statsLocked(),
		TakenAt:        time.Now().UTC(),
	}
	if s.current != nil {
		rec := *s.current
		snap.Current = &rec
	}
	if s.pending != nil {
		p := *s.pending
		snap.Pending = &p
	}
	if n := len(s.window); n > 0 {
		last := s.window[n-1]
		snap.LastEntry = &last
	}
	return snap
}

// #endregion readers
