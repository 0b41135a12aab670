package replay

import (
	"fmt"

	"stepassist/internal/eval"
	"stepassist/internal/guard"
	"stepassist/internal/observe"
	"stepassist/internal/route"
	"stepassist/internal/track"
)

// #region types
// EventKind tags a recorded event as an observation or a query.
type EventKind string

const (
	KindObservation EventKind = "observation"
	KindQuery       EventKind = "query"
)

// Event represents a single recorded input for replay. Exactly one of Obs
// or Query is meaningful, selected by Kind.
type Event struct {
	Kind  EventKind
	ID    string
	Obs   observe.Observation
	Query route.Query
}

// ReplayConfig bundles guard, routing, and window settings for a replay run.
type ReplayConfig struct {
	GuardConfig    guard.Config
	RouteConfig    route.Config
	WindowCapacity int
	MaxActivities  int
}

// DefaultReplayConfig returns the live defaults for all stages.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		GuardConfig:    guard.DefaultConfig(),
		RouteConfig:    route.DefaultConfig(),
		WindowCapacity: 16,
		MaxActivities:  8,
	}
}

// ReplayResult captures the outcome of replaying one event.
type ReplayResult struct {
	ID   string
	Kind EventKind

	// Observation events: guard action ("accept" | "defer" | "reject"), or
	// "invalid" when the observation failed validation.
	Action string
	Reason string

	// Query events: routing outcome.
	Mode  string
	Score float64
	Class string

	// Tracked state after this event.
	State track.Snapshot

	// Consistency verdict after observation events (nil for queries).
	Eval *eval.Result
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalEvents int
	Accepts     int
	Defers      int
	Rejects     int
	Invalid     int
	Direct      int
	Template    int
	EvalFails   int
	FinalState  track.Snapshot
}

// Expected captures the expected outcome for one event: action for
// observations, mode for queries. Empty fields are not compared.
type Expected struct {
	ID     string `json:"id"`
	Action string `json:"action,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

// Mismatch pairs an expected outcome with what the replay produced.
type Mismatch struct {
	ID       string
	Expected string
	Actual   string
	Reason   string
}

// #endregion types

// #region replay
// Replay feeds recorded events through a fresh tracker and decision engine:
// observations hit the guard, queries are routed against the tracked state
// at that point in the stream. Operates entirely in-memory.
func Replay(events []Event, config ReplayConfig) ([]ReplayResult, error) {
	window, err := track.NewWindow(config.WindowCapacity, config.MaxActivities)
	if err != nil {
		return nil, fmt.Errorf("replay window: %w", err)
	}
	tracker := track.NewTracker(guard.NewGuard(config.GuardConfig), window)
	engine := route.NewEngine(config.RouteConfig, route.NewKeywordClassifier())
	harness := eval.NewHarness(eval.Config{
		WindowCapacity: config.WindowCapacity,
		MaxActivities:  config.MaxActivities,
		Confirmations:  config.GuardConfig.Confirmations,
	})

	results := make([]ReplayResult, 0, len(events))
	for _, ev := range events {
		switch ev.Kind {
		case KindObservation:
			decision, err := tracker.Ingest(ev.Obs)
			if err != nil {
				results = append(results, ReplayResult{
					ID:     ev.ID,
					Kind:   KindObservation,
					Action: "invalid",
					Reason: err.Error(),
					State:  tracker.Current(),
				})
				continue
			}
			verdict := harness.Run(tracker.Debug())
			results = append(results, ReplayResult{
				ID:     ev.ID,
				Kind:   KindObservation,
				Action: string(decision.Action),
				Reason: decision.Reason,
				State:  tracker.Current(),
				Eval:   &verdict,
			})
		case KindQuery:
			snap := tracker.Current()
			decision := engine.Route(snap, ev.Query)
			results = append(results, ReplayResult{
				ID:     ev.ID,
				Kind:   KindQuery,
				Mode:   string(decision.Mode),
				Score:  decision.Score,
				Class:  string(decision.Class),
				Reason: decision.Reason,
				State:  snap,
			})
		default:
			return nil, fmt.Errorf("event %s: unknown kind %q", ev.ID, ev.Kind)
		}
	}

	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalEvents: len(results)}
	for _, r := range results {
		switch r.Action {
		case string(guard.ActionAccept):
			s.Accepts++
		case string(guard.ActionDefer):
			s.Defers++
		case string(guard.ActionReject):
			s.Rejects++
		case "invalid":
			s.Invalid++
		}
		switch r.Mode {
		case string(route.ModeDirect):
			s.Direct++
		case string(route.ModeTemplate):
			s.Template++
		}
		if r.Eval != nil && !r.Eval.Passed {
			s.EvalFails++
		}
	}
	if len(results) > 0 {
		s.FinalState = results[len(results)-1].State
	}
	return s
}

// Compare checks replay results against expected outcomes, pairwise.
func Compare(results []ReplayResult, expected []Expected) []Mismatch {
	var mismatches []Mismatch
	if len(results) != len(expected) {
		mismatches = append(mismatches, Mismatch{
			ID:       "count",
			Expected: fmt.Sprintf("%d results", len(expected)),
			Actual:   fmt.Sprintf("%d results", len(results)),
		})
	}
	n := len(results)
	if len(expected) < n {
		n = len(expected)
	}
	for i := 0; i < n; i++ {
		r, e := results[i], expected[i]
		if e.ID != "" && r.ID != e.ID {
			mismatches = append(mismatches, Mismatch{
				ID:       e.ID,
				Expected: fmt.Sprintf("event %s", e.ID),
				Actual:   fmt.Sprintf("event %s", r.ID),
			})
			continue
		}
		if e.Action != "" && r.Action != e.Action {
			mismatches = append(mismatches, Mismatch{ID: r.ID, Expected: e.Action, Actual: r.Action, Reason: r.Reason})
		}
		if e.Mode != "" && r.Mode != e.Mode {
			mismatches = append(mismatches, Mismatch{ID: r.ID, Expected: e.Mode, Actual: r.Mode, Reason: r.Reason})
		}
	}
	return mismatches
}

// #endregion replay
