package track

import (
	"fmt"
	"sync"
	"time"

	"stepassist/internal/guard"
	"stepassist/internal/observe"
)

// #region snapshot
// Snapshot is a point-in-time copy of the tracked state. Active is false
// until the first accepted observation.
type Snapshot struct {
	ActivityID string
	StepIndex  int
	Confidence float64
	UpdatedAt  time.Time
	Active     bool
}

// #endregion snapshot

// #region tracker
// Tracker owns the single tracked state and its sliding window. Every
// observation is evaluated by the guard and applied under one lock, so
// readers never see an evaluation's decision without its effect.
type Tracker struct {
	mu     sync.Mutex
	guard  *guard.Guard
	window *Window
	state  Snapshot
}

// NewTracker wires a guard to a fresh window.
func NewTracker(g *guard.Guard, w *Window) *Tracker {
	return &Tracker{guard: g, window: w}
}

// Ingest evaluates one observation and applies its decision atomically.
// Guard time is the observation's own timestamp, so replaying a recorded
// stream yields the decisions of the original run.
func (t *Tracker) Ingest(obs observe.Observation) (guard.Decision, error) {
	if err := observe.Validate(obs); err != nil {
		return guard.Decision{}, fmt.Errorf("ingest: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	lastStep, seen := t.window.LastAccepted(obs.ActivityID)
	decision := t.guard.Evaluate(obs.ObservedAt, obs, lastStep, seen)
	t.apply(obs, decision)
	return decision, nil
}

// apply mutates state and window according to an already-made decision.
// Caller holds the lock.
func (t *Tracker) apply(obs observe.Observation, decision guard.Decision) {
	switch decision.Action {
	case guard.ActionAccept:
		if obs.StepIndex < 0 {
			panic(fmt.Sprintf("tracker: accepted negative step %d for activity %q", obs.StepIndex, obs.ActivityID))
		}
		if obs.ActivityID == "" {
			panic("tracker: accepted observation with empty activity id")
		}
		t.state = Snapshot{
			ActivityID: obs.ActivityID,
			StepIndex:  obs.StepIndex,
			Confidence: obs.Confidence,
			UpdatedAt:  obs.ObservedAt,
			Active:     true,
		}
		t.window.Append(obs, true)
	case guard.ActionDefer:
		// Deferred sightings are recorded for recency bookkeeping but do
		// not advance the accepted step.
		t.window.Append(obs, false)
	case guard.ActionReject:
		// Refused observations leave no trace.
	default:
		panic(fmt.Sprintf("tracker: unknown guard action %q", decision.Action))
	}
}

// Current returns a copy of the tracked state.
func (t *Tracker) Current() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Reset clears the tracked state, the window, and any pending candidate.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Snapshot{}
	t.window.Reset()
	t.guard.ClearCandidate()
}

// #endregion tracker

// #region debug
// DebugState exposes tracker internals for the eval harness and replay
// verdicts.
type DebugState struct {
	State        Snapshot
	WindowLens   map[string]int
	Candidate    guard.Candidate
	HasCandidate bool
}

// Debug captures the tracker internals in one locked pass.
func (t *Tracker) Debug() DebugState {
	t.mu.Lock()
	defer t.mu.Unlock()
	cand, ok := t.guard.Candidate()
	return DebugState{
		State:        t.state,
		WindowLens:   t.window.Lens(),
		Candidate:    cand,
		HasCandidate: ok,
	}
}

// #endregion debug
