// Package engine wires the belief store, update policy, monitor, query
// classifier, and fallback router behind the caller API. It is the single
// serialization point for the two concurrent roles: the observer (one
// observation at a time) and queries (many, latency-sensitive).
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelworks/steptrace/internal/belief"
	"github.com/kestrelworks/steptrace/internal/fallback"
	"github.com/kestrelworks/steptrace/internal/metrics"
	"github.com/kestrelworks/steptrace/internal/monitor"
	"github.com/kestrelworks/steptrace/internal/policy"
	"github.com/kestrelworks/steptrace/internal/query"
)

// #region engine-struct

// Engine is the state-tracking and query-routing core.
type Engine struct {
	store *belief.Store
	opts  Options

	cleaner  Cleaner
	matcher  Matcher
	answerer Answerer
	recorder Recorder

	log *zap.Logger

	// obsMu serializes observation processing: the decide-then-apply pair
	// must not interleave with itself. Queries only read snapshots and are
	// not serialized here.
	obsMu sync.Mutex
}

// Deps are the external collaborators. Matcher and Cleaner are required;
// Answerer and Recorder may be nil (fallback then degrades, decisions go
// unrecorded).
type Deps struct {
	Cleaner  Cleaner
	Matcher  Matcher
	Answerer Answerer
	Recorder Recorder
	Logger   *zap.Logger
}

// New constructs an Engine. Invalid options are fatal here, never later.
func New(opts Options, deps Deps) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if deps.Cleaner == nil {
		return nil, fmt.Errorf("engine: cleaner is required")
	}
	if deps.Matcher == nil {
		return nil, fmt.Errorf("engine: matcher is required")
	}
	store, err := belief.NewStore(opts.Limits)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    store,
		opts:     opts,
		cleaner:  deps.Cleaner,
		matcher:  deps.Matcher,
		answerer: deps.Answerer,
		recorder: deps.Recorder,
		log:      logger,
	}, nil
}

// #endregion engine-struct

// #region process-observation

// ProcessObservation runs one observation through clean → match → classify →
// decide → apply. Rejected input and no-match are successful outcomes, not
// errors; a matcher failure degrades to no-match. The returned error is
// reserved for context cancellation.
func (e *Engine) ProcessObservation(ctx context.Context, id, rawText string) error {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	cleaned, ok := e.cleaner.Clean(rawText)
	if !ok {
		metrics.ObservationsRejected.Inc()
		e.log.Debug("observation rejected by cleaner", zap.String("observation_id", id))
		return nil
	}

	candidates, err := e.matcher.Match(ctx, cleaned)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.MatcherErrors.Inc()
		e.log.Warn("matcher failed, treating as no match",
			zap.String("observation_id", id), zap.Error(err))
		candidates = nil
	}

	now := time.Now().UTC()
	var cand *policy.Candidate
	var similarity float32
	if len(candidates) > 0 {
		top := candidates[0]
		cand = &top
		similarity = top.Similarity
	}
	level := policy.Classify(similarity, e.opts.Policy)

	snap := e.store.Snapshot()
	out := policy.Decide(policy.Input{
		Candidate: cand,
		Level:     level,
		Current:   snap.Current,
		Pending:   snap.Pending,
		Now:       now,
		Config:    e.opts.Policy,
	})

	entry := belief.WindowEntry{ObservedAt: now, Level: level}
	if cand != nil {
		entry.TaskID = cand.TaskID
		entry.StepIndex = cand.StepIndex
	}
	e.store.Apply(out.Mutation(entry))

	metrics.ObservationsTotal.WithLabelValues(string(level), string(out.Action)).Inc()
	metrics.UpdateMemoryStats(e.store.Stats())

	e.log.Info("observation processed",
		zap.String("observation_id", id),
		zap.String("level", string(level)),
		zap.String("action", string(out.Action)),
		zap.String("jump", string(out.Jump)),
		zap.String("reason", out.Reason),
	)

	if e.recorder != nil {
		rec := DecisionRecord{
			ObservationID: id,
			Level:         level,
			Similarity:    similarity,
			Action:        out.Action,
			Reason:        out.Reason,
			CreatedAt:     now,
		}
		if cand != nil {
			rec.TaskID = cand.TaskID
			rec.StepIndex = cand.StepIndex
		}
		if err := e.recorder.RecordDecision(rec); err != nil {
			e.log.Warn("decision recording failed", zap.Error(err))
		}
	}
	return nil
}

// #endregion process-observation

// #region process-query

// ProcessQuery answers one user question. The store snapshot is taken before
// any slow operation; the external answerer runs outside the store lock under
// its own timeout, and its failure degrades to a fixed message.
func (e *Engine) ProcessQuery(ctx context.Context, id, text string) QueryResult {
	start := time.Now()

	snap := e.store.Snapshot()
	class := query.Classify(text, snap.Current != nil)
	status := monitor.Compute(snap, 0, e.opts.Monitor)
	decision := fallback.Decide(class, snap.Current, status, e.opts.Fallback)

	var response string
	if decision.UseFallback {
		response = e.answer(ctx, text, snap.Current)
	} else {
		response = query.Render(class.Type, *snap.Current)
	}

	result := QueryResult{
		ResponseText: response,
		UsedFallback: decision.UseFallback,
		Latency:      time.Since(start),
	}

	route := "template"
	if decision.UseFallback {
		route = "fallback"
	}
	metrics.QueriesTotal.WithLabelValues(string(class.Type), route).Inc()
	metrics.QueryLatency.Observe(result.Latency.Seconds())

	fields := []zap.Field{
		zap.String("query_id", id),
		zap.String("type", string(class.Type)),
		zap.Float32("confidence", class.Confidence),
		zap.Bool("used_fallback", decision.UseFallback),
		zap.Duration("latency", result.Latency),
	}
	for _, sig := range decision.Signals {
		fields = append(fields, zap.String("fallback_"+string(sig.Type), sig.Detail))
	}
	e.log.Info("query answered", fields...)

	return result
}

// answer calls the external answerer under the configured timeout. Errors and
// timeouts are recoverable: the caller gets the degraded message, never an
// error, and the observer is never stalled.
func (e *Engine) answer(ctx context.Context, text string, rec *belief.Record) string {
	if e.answerer == nil {
		return e.opts.DegradedMessage
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.AnswerTimeout)
	defer cancel()

	response, err := e.answerer.Answer(ctx, text, rec)
	if err != nil {
		metrics.FallbackFailures.Inc()
		e.log.Warn("fallback answerer unavailable", zap.Error(err))
		return e.opts.DegradedMessage
	}
	if response == "" {
		metrics.FallbackFailures.Inc()
		return e.opts.DegradedMessage
	}
	return response
}

// #endregion process-query

// #region accessors

// CurrentState returns the current complete record, if any.
func (e *Engine) CurrentState() (belief.Record, bool) {
	return e.store.Current()
}

// History returns the retained complete records, newest first.
func (e *Engine) History() []belief.Record {
	return e.store.History()
}

// RecentObservationStatus reports staleness against the given TTL.
// A non-positive ttl uses the configured default.
func (e *Engine) RecentObservationStatus(ttl time.Duration) monitor.Status {
	return monitor.Compute(e.store.Snapshot(), ttl, e.opts.Monitor)
}

// MemoryStats reports store occupancy.
func (e *Engine) MemoryStats() belief.MemoryStats {
	return e.store.Stats()
}

// #endregion accessors
