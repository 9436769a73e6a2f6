package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kestrelworks/steptrace/internal/belief"
	"github.com/kestrelworks/steptrace/internal/policy"
)

// #region fakes

type fakeCleaner struct {
	reject bool
}

func (f *fakeCleaner) Clean(raw string) (string, bool) {
	if f.reject {
		return "", false
	}
	return raw, true
}

type fakeMatcher struct {
	candidates []policy.Candidate
	err        error
	calls      int
}

func (f *fakeMatcher) Match(ctx context.Context, text string) ([]policy.Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

type fakeAnswerer struct {
	response string
	err      error
	calls    int
}

func (f *fakeAnswerer) Answer(ctx context.Context, queryText string, rec *belief.Record) (string, error) {
	f.calls++
	return f.response, f.err
}

type fakeRecorder struct {
	records []DecisionRecord
}

func (f *fakeRecorder) RecordDecision(rec DecisionRecord) error {
	f.records = append(f.records, rec)
	return nil
}

// #endregion fakes

func newTestEngine(t *testing.T, opts Options, deps Deps) *Engine {
	t.Helper()
	if deps.Cleaner == nil {
		deps.Cleaner = &fakeCleaner{}
	}
	if deps.Matcher == nil {
		deps.Matcher = &fakeMatcher{}
	}
	eng, err := New(opts, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

func highCandidate(step int) []policy.Candidate {
	return []policy.Candidate{{TaskID: "make_coffee", StepIndex: step, Title: "Grind the beans", Similarity: 0.85}}
}

func TestObservationCommitsAndQueryRendersTemplate(t *testing.T) {
	matcher := &fakeMatcher{candidates: highCandidate(3)}
	answerer := &fakeAnswerer{response: "should not be used"}
	eng := newTestEngine(t, DefaultOptions(), Deps{Matcher: matcher, Answerer: answerer})

	if err := eng.ProcessObservation(context.Background(), "obs-1", "grinding coffee beans"); err != nil {
		t.Fatalf("ProcessObservation: %v", err)
	}

	rec, ok := eng.CurrentState()
	if !ok || rec.StepIndex != 3 || rec.TaskID != "make_coffee" {
		t.Fatalf("unexpected belief: %+v ok=%v", rec, ok)
	}

	result := eng.ProcessQuery(context.Background(), "q-1", "what step am I on?")
	if result.UsedFallback {
		t.Fatal("healthy state should answer from template")
	}
	if !strings.Contains(result.ResponseText, "step 3") {
		t.Fatalf("unexpected response: %q", result.ResponseText)
	}
	if answerer.calls != 0 {
		t.Fatal("answerer must not be called on the template path")
	}
}

func TestStaleBeliefRoutesToFallback(t *testing.T) {
	matcher := &fakeMatcher{candidates: highCandidate(2)}
	answerer := &fakeAnswerer{response: "You were last seen on step 2; the camera view may be blocked."}

	opts := DefaultOptions()
	opts.Monitor.DefaultTTL = time.Nanosecond // any belief is immediately stale
	eng := newTestEngine(t, opts, Deps{Matcher: matcher, Answerer: answerer})

	if err := eng.ProcessObservation(context.Background(), "obs-1", "pouring hot water"); err != nil {
		t.Fatalf("ProcessObservation: %v", err)
	}

	result := eng.ProcessQuery(context.Background(), "q-1", "what step am I on?")
	if !result.UsedFallback {
		t.Fatal("stale belief must route to fallback")
	}
	if result.ResponseText != answerer.response {
		t.Fatalf("unexpected response: %q", result.ResponseText)
	}
	if answerer.calls != 1 {
		t.Fatalf("expected 1 answerer call, got %d", answerer.calls)
	}
}

func TestQueryWithoutBeliefUsesFallback(t *testing.T) {
	answerer := &fakeAnswerer{response: "I have not seen you start a task yet."}
	eng := newTestEngine(t, DefaultOptions(), Deps{Answerer: answerer})

	result := eng.ProcessQuery(context.Background(), "q-1", "what step am I on?")
	if !result.UsedFallback || result.ResponseText != answerer.response {
		t.Fatalf("expected fallback answer, got %+v", result)
	}
}

func TestAnswererFailureDegrades(t *testing.T) {
	answerer := &fakeAnswerer{err: errors.New("endpoint down")}
	eng := newTestEngine(t, DefaultOptions(), Deps{Answerer: answerer})

	result := eng.ProcessQuery(context.Background(), "q-1", "unrecognized question")
	if !result.UsedFallback {
		t.Fatal("unknown query must route to fallback")
	}
	if result.ResponseText != DefaultDegradedMessage {
		t.Fatalf("expected degraded message, got %q", result.ResponseText)
	}
}

func TestNilAnswererDegrades(t *testing.T) {
	eng := newTestEngine(t, DefaultOptions(), Deps{})
	result := eng.ProcessQuery(context.Background(), "q-1", "unrecognized question")
	if result.ResponseText != DefaultDegradedMessage {
		t.Fatalf("expected degraded message, got %q", result.ResponseText)
	}
}

func TestRejectedObservationSkipsMatcher(t *testing.T) {
	matcher := &fakeMatcher{candidates: highCandidate(1)}
	eng := newTestEngine(t, DefaultOptions(), Deps{Cleaner: &fakeCleaner{reject: true}, Matcher: matcher})

	if err := eng.ProcessObservation(context.Background(), "obs-1", "@#$%"); err != nil {
		t.Fatalf("rejection is not an error: %v", err)
	}
	if matcher.calls != 0 {
		t.Fatal("rejected text must not reach the matcher")
	}
	if stats := eng.MemoryStats(); stats.WindowSize != 0 {
		t.Fatalf("rejected observation must not land in the window, got %d entries", stats.WindowSize)
	}
}

func TestMatcherErrorDegradesToNoMatch(t *testing.T) {
	matcher := &fakeMatcher{err: errors.New("vector store unavailable")}
	eng := newTestEngine(t, DefaultOptions(), Deps{Matcher: matcher})

	if err := eng.ProcessObservation(context.Background(), "obs-1", "stirring the pot"); err != nil {
		t.Fatalf("matcher failure must degrade, not abort: %v", err)
	}
	if _, ok := eng.CurrentState(); ok {
		t.Fatal("no belief should be committed on matcher failure")
	}
	// The observation is still recorded as a low window entry.
	if stats := eng.MemoryStats(); stats.WindowSize != 1 {
		t.Fatalf("expected 1 window entry, got %d", stats.WindowSize)
	}
}

func TestEmptyCandidatesIgnored(t *testing.T) {
	eng := newTestEngine(t, DefaultOptions(), Deps{Matcher: &fakeMatcher{}})

	if err := eng.ProcessObservation(context.Background(), "obs-1", "wiping the counter"); err != nil {
		t.Fatalf("ProcessObservation: %v", err)
	}
	if _, ok := eng.CurrentState(); ok {
		t.Fatal("no-match must not create belief")
	}
	st := eng.RecentObservationStatus(0)
	if st.ConsecutiveLow != 1 {
		t.Fatalf("expected 1 consecutive low, got %d", st.ConsecutiveLow)
	}
}

func TestConsecutiveLowsRecommendFallback(t *testing.T) {
	eng := newTestEngine(t, DefaultOptions(), Deps{Matcher: &fakeMatcher{}})

	for i := 0; i < 3; i++ {
		if err := eng.ProcessObservation(context.Background(), "obs", "ambiguous movement"); err != nil {
			t.Fatalf("ProcessObservation: %v", err)
		}
	}
	st := eng.RecentObservationStatus(0)
	if !st.FallbackRecommended {
		t.Fatalf("expected fallback after 3 lows: %+v", st)
	}
}

func TestDecisionsRecorded(t *testing.T) {
	recorder := &fakeRecorder{}
	matcher := &fakeMatcher{candidates: highCandidate(2)}
	eng := newTestEngine(t, DefaultOptions(), Deps{Matcher: matcher, Recorder: recorder})

	if err := eng.ProcessObservation(context.Background(), "obs-1", "grinding beans"); err != nil {
		t.Fatalf("ProcessObservation: %v", err)
	}
	if len(recorder.records) != 1 {
		t.Fatalf("expected 1 recorded decision, got %d", len(recorder.records))
	}
	rec := recorder.records[0]
	if rec.ObservationID != "obs-1" || rec.Action != policy.ActionUpdate || rec.StepIndex != 2 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestCanceledContextAborts(t *testing.T) {
	eng := newTestEngine(t, DefaultOptions(), Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := eng.ProcessObservation(ctx, "obs-1", "anything at all"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestLargeJumpConfirmationFlow(t *testing.T) {
	matcher := &fakeMatcher{candidates: []policy.Candidate{
		{TaskID: "make_coffee", StepIndex: 1, Similarity: 0.9},
	}}
	eng := newTestEngine(t, DefaultOptions(), Deps{Matcher: matcher})
	ctx := context.Background()

	if err := eng.ProcessObservation(ctx, "obs-1", "filling the kettle"); err != nil {
		t.Fatalf("ProcessObservation: %v", err)
	}

	// MEDIUM match far ahead: first sight must not move belief.
	matcher.candidates = []policy.Candidate{{TaskID: "make_coffee", StepIndex: 6, Similarity: 0.5}}
	if err := eng.ProcessObservation(ctx, "obs-2", "pouring into cups"); err != nil {
		t.Fatalf("ProcessObservation: %v", err)
	}
	if rec, _ := eng.CurrentState(); rec.StepIndex != 1 {
		t.Fatalf("large jump committed without confirmation: step %d", rec.StepIndex)
	}

	// Corroborating observation commits.
	if err := eng.ProcessObservation(ctx, "obs-3", "pouring into cups again"); err != nil {
		t.Fatalf("ProcessObservation: %v", err)
	}
	if rec, _ := eng.CurrentState(); rec.StepIndex != 6 {
		t.Fatalf("expected confirmed jump to step 6, got %d", rec.StepIndex)
	}
}
