package route

// #region imports
import (
	"fmt"
	"strings"

	"stepassist/internal/track"
)

// #endregion

// #region weights

// Signal weights are fixed; only the threshold is tunable. Each weight is
// the cost of answering from the catalog when that signal fires.
const (
	weightNoState      = 1.0
	weightLowTrust     = 0.8
	weightUnknownClass = 0.6
	weightLongQuery    = 0.4
)

// #endregion weights

// #region engine

// Engine scores queries against the tracked state and picks a mode. Route
// is pure: identical inputs always produce the same decision.
type Engine struct {
	config     Config
	classifier Classifier
}

// NewEngine builds an engine around a classifier.
func NewEngine(config Config, classifier Classifier) *Engine {
	return &Engine{config: config, classifier: classifier}
}

// Route decides how to answer one query given the current snapshot.
func (e *Engine) Route(snap track.Snapshot, query Query) Decision {
	class := e.classifier.Classify(query.Text)

	var score float64
	var reasons []string

	// 1. No tracked state: nothing to render a template from.
	if !snap.Active {
		score += weightNoState
		reasons = append(reasons, "no tracked state")
	}

	// 2. Low-trust state: tracked, but the accepted confidence sits below
	// the medium floor.
	if snap.Active && snap.Confidence < e.config.MediumConfidence {
		score += weightLowTrust
		reasons = append(reasons, fmt.Sprintf("state confidence %.2f below %.2f", snap.Confidence, e.config.MediumConfidence))
	}

	// 3. Unrecognized intent: no template exists for it.
	if class == ClassUnknown {
		score += weightUnknownClass
		reasons = append(reasons, "unrecognized query class")
	}

	// 4. Long query: too much context for a canned answer.
	if len(query.Text) > e.config.MaxQueryLength {
		score += weightLongQuery
		reasons = append(reasons, fmt.Sprintf("query length %d over %d", len(query.Text), e.config.MaxQueryLength))
	}

	mode := ModeTemplate
	if score >= e.config.DecisionThreshold {
		mode = ModeDirect
	}
	reason := "all signals clean"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	return Decision{Mode: mode, Score: score, Class: class, Reason: reason}
}

// #endregion engine
