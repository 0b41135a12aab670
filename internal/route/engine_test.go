package route

import (
	"math"
	"strings"
	"testing"
	"time"

	"stepassist/internal/track"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultConfig(), NewKeywordClassifier())
}

func activeSnapshot(confidence float64) track.Snapshot {
	return track.Snapshot{
		ActivityID: "brew-coffee",
		StepIndex:  2,
		Confidence: confidence,
		UpdatedAt:  time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Active:     true,
	}
}

func scoreNear(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

// 1. Everything wrong at once: no state, unknown intent, overlong text.
func TestRouteAllSignalsDirty(t *testing.T) {
	e := newTestEngine()
	query := Query{ID: "q1", Text: strings.Repeat("tell me everything about this contraption ", 6)}
	if len(query.Text) <= 200 {
		t.Fatalf("test text must exceed 200 chars, got %d", len(query.Text))
	}

	d := e.Route(track.Snapshot{}, query)

	if d.Mode != ModeDirect {
		t.Fatalf("expected direct, got %s: %s", d.Mode, d.Reason)
	}
	if !scoreNear(d.Score, 2.0) {
		t.Fatalf("expected score 2.0, got %v", d.Score)
	}
	if d.Class != ClassUnknown {
		t.Fatalf("expected unknown class, got %s", d.Class)
	}
}

// 2. Everything clean: tracked state, recognized intent, short text.
func TestRouteCleanSignalsTemplate(t *testing.T) {
	e := newTestEngine()

	d := e.Route(activeSnapshot(0.8), Query{ID: "q2", Text: "what's the next step?"})

	if d.Mode != ModeTemplate {
		t.Fatalf("expected template, got %s: %s", d.Mode, d.Reason)
	}
	if !scoreNear(d.Score, 0) {
		t.Fatalf("expected score 0, got %v", d.Score)
	}
	if d.Class != ClassNextStep {
		t.Fatalf("expected next_step, got %s", d.Class)
	}
	if d.Reason != "all signals clean" {
		t.Fatalf("unexpected reason: %s", d.Reason)
	}
}

func TestRouteNoStateAloneGoesDirect(t *testing.T) {
	e := newTestEngine()

	d := e.Route(track.Snapshot{}, Query{ID: "q3", Text: "which step am I on?"})

	if d.Mode != ModeDirect {
		t.Fatalf("expected direct, got %s: %s", d.Mode, d.Reason)
	}
	if !scoreNear(d.Score, 1.0) {
		t.Fatalf("expected score 1.0, got %v", d.Score)
	}
}

func TestRouteLowTrustStateGoesDirect(t *testing.T) {
	e := newTestEngine()

	d := e.Route(activeSnapshot(0.3), Query{ID: "q4", Text: "which step am I on?"})

	if d.Mode != ModeDirect {
		t.Fatalf("expected direct, got %s: %s", d.Mode, d.Reason)
	}
	if !scoreNear(d.Score, 0.8) {
		t.Fatalf("expected score 0.8, got %v", d.Score)
	}
	if !strings.Contains(d.Reason, "below") {
		t.Fatalf("expected low-trust reason, got %s", d.Reason)
	}
}

func TestRouteUnknownClassAloneGoesDirect(t *testing.T) {
	e := newTestEngine()

	d := e.Route(activeSnapshot(0.9), Query{ID: "q5", Text: "is the lid supposed to rattle like that?"})

	if d.Mode != ModeDirect {
		t.Fatalf("expected direct, got %s: %s", d.Mode, d.Reason)
	}
	if !scoreNear(d.Score, 0.6) {
		t.Fatalf("expected score 0.6, got %v", d.Score)
	}
}

// A long query alone scores 0.4 and stays under the 0.5 threshold.
func TestRouteLongQueryAloneStaysTemplate(t *testing.T) {
	e := newTestEngine()
	text := "what's next " + strings.Repeat("x", 200)

	d := e.Route(activeSnapshot(0.9), Query{ID: "q6", Text: text})

	if d.Mode != ModeTemplate {
		t.Fatalf("expected template, got %s: %s", d.Mode, d.Reason)
	}
	if !scoreNear(d.Score, 0.4) {
		t.Fatalf("expected score 0.4, got %v", d.Score)
	}
}

// Length 200 is allowed; 201 trips the signal.
func TestRouteLengthBoundary(t *testing.T) {
	e := newTestEngine()
	prefix := "what's next "
	atLimit := prefix + strings.Repeat("x", 200-len(prefix))
	if len(atLimit) != 200 {
		t.Fatalf("expected 200 chars, got %d", len(atLimit))
	}

	if d := e.Route(activeSnapshot(0.9), Query{ID: "q7", Text: atLimit}); !scoreNear(d.Score, 0) {
		t.Fatalf("200 chars must not trip the length signal, score %v", d.Score)
	}
	if d := e.Route(activeSnapshot(0.9), Query{ID: "q8", Text: atLimit + "x"}); !scoreNear(d.Score, 0.4) {
		t.Fatalf("201 chars must trip the length signal, score %v", d.Score)
	}
}

// A score exactly at the threshold goes direct.
func TestRouteThresholdEquality(t *testing.T) {
	config := DefaultConfig()
	config.DecisionThreshold = 0.6
	e := NewEngine(config, NewKeywordClassifier())

	d := e.Route(activeSnapshot(0.9), Query{ID: "q9", Text: "is the lid supposed to rattle like that?"})

	if !scoreNear(d.Score, 0.6) {
		t.Fatalf("expected score 0.6, got %v", d.Score)
	}
	if d.Mode != ModeDirect {
		t.Fatalf("score at threshold must go direct, got %s", d.Mode)
	}
}

func TestRouteDeterministic(t *testing.T) {
	e := newTestEngine()
	snap := activeSnapshot(0.3)
	query := Query{ID: "q10", Text: "how long does this usually take?"}

	first := e.Route(snap, query)
	for i := 0; i < 100; i++ {
		if d := e.Route(snap, query); d != first {
			t.Fatalf("routing not deterministic: %+v vs %+v", first, d)
		}
	}
}
