package replay

import (
	"testing"
	"time"

	"stepassist/internal/observe"
	"stepassist/internal/route"
)

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// helper: observation event at an offset from the session start.
func obsEvent(id, activity string, step int, confidence float64, offset time.Duration) Event {
	return Event{
		Kind: KindObservation,
		ID:   id,
		Obs: observe.Observation{
			ActivityID: activity,
			StepIndex:  step,
			Confidence: confidence,
			ObservedAt: base.Add(offset),
		},
	}
}

// helper: query event.
func queryEvent(id, text string) Event {
	return Event{
		Kind:  KindQuery,
		ID:    id,
		Query: route.Query{ID: id, Text: text},
	}
}

// 1. Debounce path: a far jump defers on first sighting and accepts on the
// second inside the TTL, with the state holding still in between.
func TestReplay_DebounceThenConfirm(t *testing.T) {
	events := []Event{
		obsEvent("obs-1", "brew-coffee", 0, 0.9, 0),
		obsEvent("obs-2", "brew-coffee", 1, 0.5, 5*time.Second),
		obsEvent("obs-3", "brew-coffee", 5, 0.5, 10*time.Second),
		obsEvent("obs-4", "brew-coffee", 5, 0.5, 12*time.Second),
	}

	results, err := Replay(events, DefaultReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	wantActions := []string{"accept", "accept", "defer", "accept"}
	for i, want := range wantActions {
		if results[i].Action != want {
			t.Errorf("event %d: expected %s, got %s (reason: %s)", i, want, results[i].Action, results[i].Reason)
		}
	}
	if results[2].State.StepIndex != 1 {
		t.Errorf("deferred jump must not move the state, got step %d", results[2].State.StepIndex)
	}
	if results[3].State.StepIndex != 5 {
		t.Errorf("confirmed jump should land on step 5, got %d", results[3].State.StepIndex)
	}
	for i, r := range results {
		if r.Eval == nil {
			t.Fatalf("event %d: expected consistency verdict", i)
		}
		if !r.Eval.Passed {
			t.Errorf("event %d: consistency failed: %s", i, r.Eval.Reason)
		}
	}
}

// 2. Query routing: the same question goes direct with no state and template
// once the tracker holds trusted state.
func TestReplay_QueryRouting(t *testing.T) {
	events := []Event{
		queryEvent("q-1", "what's next?"),
		obsEvent("obs-1", "brew-coffee", 2, 0.9, 0),
		queryEvent("q-2", "what's next?"),
	}

	results, err := Replay(events, DefaultReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if results[0].Mode != "direct" {
		t.Errorf("q-1: expected direct with no state, got %s (reason: %s)", results[0].Mode, results[0].Reason)
	}
	if results[0].Eval != nil {
		t.Error("query events carry no consistency verdict")
	}
	if results[2].Mode != "template" {
		t.Errorf("q-2: expected template with trusted state, got %s (reason: %s)", results[2].Mode, results[2].Reason)
	}
	if results[2].State.StepIndex != 2 {
		t.Errorf("q-2: expected state at step 2, got %d", results[2].State.StepIndex)
	}
	if results[2].Class != "next_step" {
		t.Errorf("q-2: expected next_step class, got %s", results[2].Class)
	}
}

// 3. Invalid observation: recorded as "invalid" without stopping the run or
// touching the state.
func TestReplay_InvalidObservation(t *testing.T) {
	events := []Event{
		obsEvent("obs-1", "brew-coffee", -3, 0.9, 0),
		obsEvent("obs-2", "brew-coffee", 0, 0.9, time.Second),
	}

	results, err := Replay(events, DefaultReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if results[0].Action != "invalid" {
		t.Errorf("expected invalid, got %s", results[0].Action)
	}
	if results[0].State.Active {
		t.Error("invalid observation must not activate the state")
	}
	if results[0].Eval != nil {
		t.Error("invalid observation carries no consistency verdict")
	}
	if results[1].Action != "accept" {
		t.Errorf("run should continue past invalid input, got %s", results[1].Action)
	}
}

// 4. Unknown kind aborts the run.
func TestReplay_UnknownKind(t *testing.T) {
	events := []Event{{Kind: "telemetry", ID: "x-1"}}

	_, err := Replay(events, DefaultReplayConfig())
	if err == nil {
		t.Fatal("expected error for unknown event kind")
	}
}

// 5. Bad window settings surface as an error before any event runs.
func TestReplay_BadWindowConfig(t *testing.T) {
	config := DefaultReplayConfig()
	config.WindowCapacity = 0

	_, err := Replay(nil, config)
	if err == nil {
		t.Fatal("expected error for zero window capacity")
	}
}

// 6. Summarize: counts match per-event outcomes.
func TestReplay_Summarize(t *testing.T) {
	events := []Event{
		obsEvent("obs-1", "brew-coffee", 0, 0.9, 0),
		obsEvent("obs-2", "brew-coffee", 1, 0.2, time.Second),
		obsEvent("obs-3", "brew-coffee", 5, 0.5, 2*time.Second),
		obsEvent("obs-4", "brew-coffee", -1, 0.5, 3*time.Second),
		queryEvent("q-1", "uh so what's the deal with the grinder?"),
		queryEvent("q-2", "what's next?"),
	}

	results, err := Replay(events, DefaultReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	summary := Summarize(results)

	if summary.TotalEvents != 6 {
		t.Errorf("expected TotalEvents=6, got %d", summary.TotalEvents)
	}
	if summary.Accepts != 1 {
		t.Errorf("expected Accepts=1, got %d", summary.Accepts)
	}
	if summary.Rejects != 1 {
		t.Errorf("expected Rejects=1, got %d", summary.Rejects)
	}
	if summary.Defers != 1 {
		t.Errorf("expected Defers=1, got %d", summary.Defers)
	}
	if summary.Invalid != 1 {
		t.Errorf("expected Invalid=1, got %d", summary.Invalid)
	}
	if summary.Direct != 1 {
		t.Errorf("expected Direct=1, got %d", summary.Direct)
	}
	if summary.Template != 1 {
		t.Errorf("expected Template=1, got %d", summary.Template)
	}
	if summary.EvalFails != 0 {
		t.Errorf("expected EvalFails=0, got %d", summary.EvalFails)
	}
	if !summary.FinalState.Active || summary.FinalState.StepIndex != 0 {
		t.Errorf("unexpected final state %+v", summary.FinalState)
	}
}

// 7. Compare: flags wrong actions and length drift, passes exact matches.
func TestReplay_Compare(t *testing.T) {
	events := []Event{
		obsEvent("obs-1", "brew-coffee", 0, 0.9, 0),
		queryEvent("q-1", "what's next?"),
	}
	results, err := Replay(events, DefaultReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	exact := []Expected{
		{ID: "obs-1", Action: "accept"},
		{ID: "q-1", Mode: "template"},
	}
	if mismatches := Compare(results, exact); len(mismatches) != 0 {
		t.Fatalf("expected clean compare, got %+v", mismatches)
	}

	wrong := []Expected{
		{ID: "obs-1", Action: "reject"},
		{ID: "q-1", Mode: "template"},
	}
	mismatches := Compare(results, wrong)
	if len(mismatches) != 1 {
		t.Fatalf("expected 1 mismatch, got %d", len(mismatches))
	}
	if mismatches[0].ID != "obs-1" || mismatches[0].Expected != "reject" || mismatches[0].Actual != "accept" {
		t.Errorf("unexpected mismatch %+v", mismatches[0])
	}

	short := exact[:1]
	if mismatches := Compare(results, short); len(mismatches) == 0 {
		t.Error("expected length drift to be flagged")
	}
}

// 8. Config passthrough: single-sighting confirmation accepts the jump that
// defaults would defer.
func TestReplay_ConfigPassthrough(t *testing.T) {
	events := []Event{
		obsEvent("obs-1", "brew-coffee", 0, 0.9, 0),
		obsEvent("obs-2", "brew-coffee", 5, 0.5, time.Second),
	}

	defaultResults, err := Replay(events, DefaultReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if defaultResults[1].Action != "defer" {
		t.Fatalf("defaults should defer the jump, got %s", defaultResults[1].Action)
	}

	eager := DefaultReplayConfig()
	eager.GuardConfig.Confirmations = 1
	eagerResults, err := Replay(events, eager)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if eagerResults[1].Action != "accept" {
		t.Errorf("single confirmation should accept the jump, got %s", eagerResults[1].Action)
	}
}

// 9. Deterministic: same inputs, same outputs.
func TestReplay_Deterministic(t *testing.T) {
	events := []Event{
		obsEvent("obs-1", "brew-coffee", 0, 0.9, 0),
		obsEvent("obs-2", "brew-coffee", 4, 0.5, time.Second),
		queryEvent("q-1", "how long will this take?"),
	}
	config := DefaultReplayConfig()

	first, err := Replay(events, config)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	second, err := Replay(events, config)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("result lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Action != second[i].Action || first[i].Mode != second[i].Mode {
			t.Errorf("event %d: outcomes differ: %s/%s vs %s/%s", i, first[i].Action, first[i].Mode, second[i].Action, second[i].Mode)
		}
		if first[i].Score != second[i].Score {
			t.Errorf("event %d: score differs: %f vs %f", i, first[i].Score, second[i].Score)
		}
	}
}
