package guard

import "time"

// #region action
// Action enumerates guard outcomes for an observation.
type Action string

const (
	ActionAccept Action = "accept"
	ActionDefer  Action = "defer"
	ActionReject Action = "reject"
)

// #endregion action

// #region band
// Band is the confidence band an observation falls into relative to the
// configured thresholds.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// #endregion band

// #region guard-config
// Config holds thresholds for consistency decisions.
type Config struct {
	HighConfidence   float64       // accepted unconditionally at or above
	MediumConfidence float64       // rejected below
	MaxForwardJump   int           // forward step delta accepted without confirmation
	Confirmations    int           // matching sightings required to confirm a larger jump
	ConfirmationTTL  time.Duration // candidate lifetime from first sighting
}

// DefaultConfig returns the shipped thresholds.
func DefaultConfig() Config {
	return Config{
		HighConfidence:   0.65,
		MediumConfidence: 0.40,
		MaxForwardJump:   2,
		Confirmations:    2,
		ConfirmationTTL:  10 * time.Second,
	}
}

// #endregion guard-config

// #region candidate
// Candidate is a large forward jump waiting for confirmation. At most one
// exists at a time: any accept clears it, any non-matching jump replaces it,
// and expiry is lazy (checked on the next sighting, no timer).
type Candidate struct {
	ActivityID  string
	StepIndex   int
	FirstSeenAt time.Time
	MatchCount  int
}

// #endregion candidate

// #region decision
// Decision is the outcome of evaluating one observation.
type Decision struct {
	Action     Action
	Band       Band
	Reason     string
	MatchCount int // candidate sightings counted so far; 0 when no candidate was involved
}

// #endregion decision
