package fallback

import (
	"testing"

	"github.com/kestrelworks/steptrace/internal/belief"
	"github.com/kestrelworks/steptrace/internal/monitor"
	"github.com/kestrelworks/steptrace/internal/query"
)

var goodRecord = &belief.Record{TaskID: "coffee", StepIndex: 3, Title: "Grind the beans"}

func hasSignal(d Decision, want SignalType) bool {
	for _, s := range d.Signals {
		if s.Type == want {
			return true
		}
	}
	return false
}

func TestTemplateRouteWhenHealthy(t *testing.T) {
	class := query.Classification{Type: query.TypeCurrentStep, Confidence: 0.9}
	d := Decide(class, goodRecord, monitor.Status{}, DefaultConfig())
	if d.UseFallback {
		t.Fatalf("expected template route, got fallback: %+v", d.Signals)
	}
	if len(d.Signals) != 0 {
		t.Fatalf("expected no signals, got %+v", d.Signals)
	}
}

func TestNoRecordForcesFallback(t *testing.T) {
	class := query.Classification{Type: query.TypeCurrentStep, Confidence: 0.9}
	d := Decide(class, nil, monitor.Status{}, DefaultConfig())
	if !d.UseFallback || !hasSignal(d, SignalNoRecord) {
		t.Fatalf("expected no_record signal, got %+v", d.Signals)
	}
}

func TestUnknownQueryForcesFallback(t *testing.T) {
	class := query.Classification{Type: query.TypeUnknown, Confidence: 0.1}
	d := Decide(class, goodRecord, monitor.Status{}, DefaultConfig())
	if !d.UseFallback || !hasSignal(d, SignalUnknownQuery) {
		t.Fatalf("expected unknown_query signal, got %+v", d.Signals)
	}
}

func TestWeakConfidenceForcesFallback(t *testing.T) {
	// Recognized intent, but below the confidence floor.
	class := query.Classification{Type: query.TypeCurrentStep, Confidence: 0.36}
	d := Decide(class, goodRecord, monitor.Status{}, DefaultConfig())
	if !d.UseFallback || !hasSignal(d, SignalWeakQuery) {
		t.Fatalf("expected weak_query_confidence signal, got %+v", d.Signals)
	}
}

func TestEmptyRecordForcesFallback(t *testing.T) {
	empty := &belief.Record{TaskID: "coffee"}
	class := query.Classification{Type: query.TypeCurrentStep, Confidence: 0.9}
	d := Decide(class, empty, monitor.Status{}, DefaultConfig())
	if !d.UseFallback || !hasSignal(d, SignalEmptyRecord) {
		t.Fatalf("expected empty_record signal, got %+v", d.Signals)
	}
}

func TestStaleBeliefForcesFallback(t *testing.T) {
	class := query.Classification{Type: query.TypeCurrentStep, Confidence: 0.9}
	st := monitor.Status{FallbackRecommended: true, Reasons: []string{"belief is 40.0s old, ttl 15.0s"}}
	d := Decide(class, goodRecord, st, DefaultConfig())
	if !d.UseFallback || !hasSignal(d, SignalStaleBelief) {
		t.Fatalf("expected stale_belief signal, got %+v", d.Signals)
	}
}

func TestSignalsAccumulate(t *testing.T) {
	// Every firing condition is collected, not just the first.
	class := query.Classification{Type: query.TypeUnknown, Confidence: 0.1}
	st := monitor.Status{FallbackRecommended: true}
	d := Decide(class, nil, st, DefaultConfig())
	if len(d.Signals) < 3 {
		t.Fatalf("expected at least 3 signals, got %+v", d.Signals)
	}
}
