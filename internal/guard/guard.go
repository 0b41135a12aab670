package guard

import (
	"fmt"
	"time"

	"stepassist/internal/observe"
)

// #region guard
// Guard decides whether an observation may overwrite the tracked state. It
// owns the pending jump candidate; the caller owns the tracked state and the
// sliding window and must serialize Evaluate with the application of its
// outcome.
type Guard struct {
	config    Config
	candidate *Candidate
}

// NewGuard creates a guard with the given configuration.
func NewGuard(config Config) *Guard {
	return &Guard{config: config}
}

// Evaluate classifies one observation against the last step seen for its
// activity. lastStep is the step of the most recent accepted evidence for
// obs.ActivityID and seen is false when none exists. now is the evaluation instant
// used for candidate TTL math; callers pass the observation timestamp so
// replays stay deterministic.
func (g *Guard) Evaluate(now time.Time, obs observe.Observation, lastStep int, seen bool) Decision {
	band := g.band(obs.Confidence)

	// 1. Low band: noise, refused before it touches anything
	if band == BandLow {
		return Decision{
			Action: ActionReject,
			Band:   band,
			Reason: fmt.Sprintf("confidence %.2f below medium threshold %.2f", obs.Confidence, g.config.MediumConfidence),
		}
	}

	// 2. High band: trusted regardless of step delta
	if band == BandHigh {
		g.candidate = nil
		return Decision{
			Action: ActionAccept,
			Band:   band,
			Reason: fmt.Sprintf("confidence %.2f at or above high threshold %.2f", obs.Confidence, g.config.HighConfidence),
		}
	}

	// 3. Medium band: plausibility against the window

	// 3a. Nothing seen for this activity yet
	if !seen {
		g.candidate = nil
		return Decision{
			Action: ActionAccept,
			Band:   band,
			Reason: "no recent observation for activity, accepting fresh evidence",
		}
	}

	// 3b. Restart or backward move
	if obs.StepIndex <= lastStep {
		g.candidate = nil
		return Decision{
			Action: ActionAccept,
			Band:   band,
			Reason: fmt.Sprintf("step %d at or before last seen %d", obs.StepIndex, lastStep),
		}
	}

	// 3c. Small forward jump
	diff := obs.StepIndex - lastStep
	if diff <= g.config.MaxForwardJump {
		g.candidate = nil
		return Decision{
			Action: ActionAccept,
			Band:   band,
			Reason: fmt.Sprintf("forward jump %d within limit %d", diff, g.config.MaxForwardJump),
		}
	}

	// 3d. Large forward jump: needs repeated sightings inside the TTL
	if c := g.candidate; c != nil && c.ActivityID == obs.ActivityID && c.StepIndex == obs.StepIndex &&
		now.Sub(c.FirstSeenAt) <= g.config.ConfirmationTTL {
		c.MatchCount++
		if c.MatchCount >= g.config.Confirmations {
			matches := c.MatchCount
			g.candidate = nil
			return Decision{
				Action:     ActionAccept,
				Band:       band,
				Reason:     fmt.Sprintf("jump to step %d confirmed by %d sightings", obs.StepIndex, matches),
				MatchCount: matches,
			}
		}
		return Decision{
			Action:     ActionDefer,
			Band:       band,
			Reason:     fmt.Sprintf("jump to step %d has %d of %d sightings", obs.StepIndex, c.MatchCount, g.config.Confirmations),
			MatchCount: c.MatchCount,
		}
	}

	// New candidate; a non-matching or expired one starts over at one sighting.
	g.candidate = &Candidate{
		ActivityID:  obs.ActivityID,
		StepIndex:   obs.StepIndex,
		FirstSeenAt: now,
		MatchCount:  1,
	}
	if g.config.Confirmations <= 1 {
		g.candidate = nil
		return Decision{
			Action:     ActionAccept,
			Band:       band,
			Reason:     fmt.Sprintf("jump to step %d confirmed by single sighting", obs.StepIndex),
			MatchCount: 1,
		}
	}
	return Decision{
		Action:     ActionDefer,
		Band:       band,
		Reason:     fmt.Sprintf("forward jump %d exceeds limit %d, awaiting confirmation", diff, g.config.MaxForwardJump),
		MatchCount: 1,
	}
}

// ClearCandidate drops any pending jump candidate.
func (g *Guard) ClearCandidate() {
	g.candidate = nil
}

// Candidate returns a copy of the pending candidate, if any.
func (g *Guard) Candidate() (Candidate, bool) {
	if g.candidate == nil {
		return Candidate{}, false
	}
	return *g.candidate, true
}

// band maps a confidence score onto its configured band.
func (g *Guard) band(confidence float64) Band {
	switch {
	case confidence >= g.config.HighConfidence:
		return BandHigh
	case confidence >= g.config.MediumConfidence:
		return BandMedium
	default:
		return BandLow
	}
}

// #endregion guard
