package query

import (
	"strings"
	"testing"

	"github.com/kestrelworks/steptrace/internal/belief"
)

var testRecord = belief.Record{
	TaskID:     "make_coffee",
	StepIndex:  3,
	Title:      "Grind the beans",
	Level:      belief.LevelHigh,
	Similarity: 0.82,
}

func TestRenderCoversAllTypes(t *testing.T) {
	types := []Type{
		TypeCurrentStep, TypeNextStep, TypeRequiredTools,
		TypeCompletionStatus, TypeProgressOverview, TypeHelp, TypeUnknown,
	}
	for _, qtype := range types {
		got := Render(qtype, testRecord)
		if got == "" {
			t.Fatalf("Render(%s) returned empty string", qtype)
		}
	}
}

func TestRenderCurrentStep(t *testing.T) {
	got := Render(TypeCurrentStep, testRecord)
	if !strings.Contains(got, "step 3") || !strings.Contains(got, "make_coffee") {
		t.Fatalf("unexpected render: %q", got)
	}
	if !strings.Contains(got, "Grind the beans") {
		t.Fatalf("expected title in render: %q", got)
	}
}

func TestRenderNextStep(t *testing.T) {
	got := Render(TypeNextStep, testRecord)
	if !strings.Contains(got, "step 4") {
		t.Fatalf("next step should reference step 4: %q", got)
	}
}

func TestRenderWithoutTitle(t *testing.T) {
	rec := testRecord
	rec.Title = ""
	got := Render(TypeCurrentStep, rec)
	if strings.Contains(got, "()") {
		t.Fatalf("empty title must not leave empty parens: %q", got)
	}
}

func TestRenderProgressIncludesConfidence(t *testing.T) {
	got := Render(TypeProgressOverview, testRecord)
	if !strings.Contains(got, "high") || !strings.Contains(got, "82%") {
		t.Fatalf("expected confidence details: %q", got)
	}
}
