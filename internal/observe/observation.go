package observe

import (
	"errors"
	"fmt"
	"time"
)

// #region observation
// Observation is one confidence-scored sighting from the vision scorer:
// "activity X looks like step N with confidence C". Immutable once built.
type Observation struct {
	ActivityID string    `json:"activity_id"`
	StepIndex  int       `json:"step_index"`
	Confidence float64   `json:"confidence"`
	ObservedAt time.Time `json:"timestamp"`
}

// #endregion observation

// #region validation
// ErrInvalidObservation marks observations refused at the ingestion boundary.
// Nothing downstream ever sees them.
var ErrInvalidObservation = errors.New("invalid observation")

// Validate checks the invariants the guard and tracker rely on. Values are
// never coerced: an out-of-range observation is refused, not clamped.
func Validate(obs Observation) error {
	if obs.ActivityID == "" {
		return fmt.Errorf("%w: empty activity id", ErrInvalidObservation)
	}
	if obs.StepIndex < 0 {
		return fmt.Errorf("%w: negative step index %d", ErrInvalidObservation, obs.StepIndex)
	}
	if obs.Confidence < 0 || obs.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.4f outside [0, 1]", ErrInvalidObservation, obs.Confidence)
	}
	if obs.ObservedAt.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidObservation)
	}
	return nil
}

// #endregion validation
