package eval

import (
	"fmt"
	"sort"

	"stepassist/internal/track"
)

// #region harness
// Harness runs lightweight post-ingest consistency checks on tracker
// internals. It reads a debug snapshot and never touches the tracker itself.
type Harness struct {
	config Config
}

// NewHarness creates a harness with the given bounds.
func NewHarness(config Config) *Harness {
	return &Harness{config: config}
}

// Run validates one debug snapshot. Returns pass/fail with one check per
// invariant that applies to the snapshot.
func (h *Harness) Run(dbg track.DebugState) Result {
	var checks []Check
	passed := true
	var failReasons []string

	// 1. Tracked state shape: an active state carries an activity id and a
	// non-negative step.
	if dbg.State.Active {
		shapePass := dbg.State.ActivityID != "" && dbg.State.StepIndex >= 0
		checks = append(checks, Check{
			Name:  "state_shape",
			Value: float64(dbg.State.StepIndex),
			Pass:  shapePass,
		})
		if !shapePass {
			passed = false
			failReasons = append(failReasons, fmt.Sprintf("tracked state malformed: activity %q step %d", dbg.State.ActivityID, dbg.State.StepIndex))
		}

		confPass := dbg.State.Confidence >= 0 && dbg.State.Confidence <= 1
		checks = append(checks, Check{
			Name:  "state_confidence",
			Value: dbg.State.Confidence,
			Pass:  confPass,
		})
		if !confPass {
			passed = false
			failReasons = append(failReasons, fmt.Sprintf("confidence %.4f outside [0,1]", dbg.State.Confidence))
		}
	}

	// 2. Activity count: the window must stay inside its LRU bound.
	activityCount := len(dbg.WindowLens)
	activityPass := activityCount <= h.config.MaxActivities
	checks = append(checks, Check{
		Name:  "window_activities",
		Value: float64(activityCount),
		Pass:  activityPass,
	})
	if !activityPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("%d activities exceeds bound %d", activityCount, h.config.MaxActivities))
	}

	// 3. Per-activity depth: no ring may exceed the configured capacity.
	ids := make([]string, 0, len(dbg.WindowLens))
	for id := range dbg.WindowLens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		depth := dbg.WindowLens[id]
		depthPass := depth <= h.config.WindowCapacity
		checks = append(checks, Check{
			Name:  fmt.Sprintf("window_depth_%s", id),
			Value: float64(depth),
			Pass:  depthPass,
		})
		if !depthPass {
			passed = false
			failReasons = append(failReasons, fmt.Sprintf("%s ring holds %d entries, capacity %d", id, depth, h.config.WindowCapacity))
		}
	}

	// 4. Candidate bounds: a live candidate has confirmed at least once and
	// strictly fewer times than the accept threshold, since reaching the
	// threshold accepts and clears it.
	if dbg.HasCandidate {
		countPass := dbg.Candidate.MatchCount >= 1 && dbg.Candidate.MatchCount < h.config.Confirmations
		checks = append(checks, Check{
			Name:  "candidate_count",
			Value: float64(dbg.Candidate.MatchCount),
			Pass:  countPass,
		})
		if !countPass {
			passed = false
			failReasons = append(failReasons, fmt.Sprintf("candidate count %d outside [1,%d)", dbg.Candidate.MatchCount, h.config.Confirmations))
		}

		// A candidate for the tracked activity must sit ahead of the accepted
		// step; anything at or behind it would have been accepted outright.
		if dbg.State.Active && dbg.Candidate.ActivityID == dbg.State.ActivityID {
			aheadPass := dbg.Candidate.StepIndex > dbg.State.StepIndex
			checks = append(checks, Check{
				Name:  "candidate_ahead",
				Value: float64(dbg.Candidate.StepIndex),
				Pass:  aheadPass,
			})
			if !aheadPass {
				passed = false
				failReasons = append(failReasons, fmt.Sprintf("candidate step %d not ahead of accepted step %d", dbg.Candidate.StepIndex, dbg.State.StepIndex))
			}
		}
	}

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("consistency failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("consistency failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return Result{
		Passed: passed,
		Checks: checks,
		Reason: reason,
	}
}

// #endregion harness
