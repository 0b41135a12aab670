package render

// #region imports
import (
	"errors"
	"fmt"
	"strings"

	"stepassist/internal/route"
	"stepassist/internal/track"
)

// #endregion

// #region errors

var (
	// ErrNoState means there is nothing tracked to narrate.
	ErrNoState = errors.New("no tracked state to render")
	// ErrUnknownActivity means the tracked activity is not in the catalog.
	ErrUnknownActivity = errors.New("activity not in catalog")
	// ErrStepOutOfRange means the tracked step exceeds the activity.
	ErrStepOutOfRange = errors.New("tracked step outside catalog")
	// ErrUnknownClass means no template exists for the query class.
	ErrUnknownClass = errors.New("no template for query class")
)

// #endregion errors

// #region renderer

// Renderer answers recognized queries from the catalog, no model involved.
type Renderer struct {
	catalog *Catalog
}

// NewRenderer wraps a validated catalog.
func NewRenderer(catalog *Catalog) *Renderer {
	return &Renderer{catalog: catalog}
}

// Render produces the canned answer for a classified query against the
// tracked state. Steps are shown 1-based; indices stay 0-based internally.
func (r *Renderer) Render(snap track.Snapshot, class route.Class) (string, error) {
	if !snap.Active {
		return "", ErrNoState
	}
	activity, ok := r.catalog.Activity(snap.ActivityID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownActivity, snap.ActivityID)
	}
	step, ok := activity.Step(snap.StepIndex)
	if !ok {
		return "", fmt.Errorf("%w: step %d of %s", ErrStepOutOfRange, snap.StepIndex, snap.ActivityID)
	}

	total := len(activity.Steps)
	human := snap.StepIndex + 1

	switch class {
	case route.ClassCurrentStep:
		answer := fmt.Sprintf("You're on step %d of %d: %s", human, total, step.Instruction)
		if step.Hint != "" {
			answer += " Hint: " + step.Hint
		}
		return answer, nil

	case route.ClassNextStep:
		next, ok := activity.Step(snap.StepIndex + 1)
		if !ok {
			return fmt.Sprintf("Step %d is the last one. %s is complete.", human, activity.Title), nil
		}
		return fmt.Sprintf("Next up, step %d of %d: %s", human+1, total, next.Instruction), nil

	case route.ClassDuration:
		if step.DurationSeconds <= 0 {
			return fmt.Sprintf("No timing is recorded for step %d.", human), nil
		}
		return fmt.Sprintf("Step %d usually takes about %s.", human, humanDuration(step.DurationSeconds)), nil

	case route.ClassRequirements:
		if len(step.Needs) == 0 {
			return fmt.Sprintf("Step %d needs nothing beyond what you have.", human), nil
		}
		return fmt.Sprintf("For step %d you need: %s.", human, strings.Join(step.Needs, ", ")), nil

	case route.ClassProgress:
		remaining := total - human
		if remaining == 0 {
			return fmt.Sprintf("You're on the final step of %s.", activity.Title), nil
		}
		return fmt.Sprintf("You're on step %d of %d in %s, %d to go.", human, total, activity.Title, remaining), nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownClass, class)
}

// humanDuration renders seconds the way a person would say them.
func humanDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%d seconds", seconds)
	}
	minutes := (seconds + 30) / 60
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// #endregion renderer
