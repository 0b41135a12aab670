package route

// #region imports
import (
	"strings"
)

// #endregion

// #region phrases

var nextStepPhrases = []string{
	"next step", "what's next", "whats next", "what is next",
	"what comes next", "comes next", "what now", "what do i do now",
	"after this", "then what", "what follows",
}

var currentStepPhrases = []string{
	"current step", "which step", "what step", "where am i",
	"what am i doing", "what am i on", "step am i",
}

var durationPhrases = []string{
	"how long", "how much time", "how much longer", "how many minutes",
	"how many seconds", "duration", "time left", "time will this take",
	"time does this take",
}

var requirementsPhrases = []string{
	"what do i need", "what i need", "do i need", "requirement",
	"tools", "ingredients", "materials", "equipment", "supplies",
	"needed for",
}

var progressPhrases = []string{
	"progress", "how far", "how much is left", "how many steps left",
	"steps remain", "almost done", "percent done",
}

// #endregion phrases

// #region keyword-classifier

// KeywordClassifier recognizes query intent via phrase heuristics. No model
// call.
type KeywordClassifier struct{}

// NewKeywordClassifier returns the stock phrase classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify maps query text to a class, ClassUnknown when nothing matches.
func (c *KeywordClassifier) Classify(text string) Class {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return ClassUnknown
	}

	// Next-step before current-step: "what step comes next" must land on
	// next_step even though it contains "what step".
	for _, p := range nextStepPhrases {
		if strings.Contains(lower, p) {
			return ClassNextStep
		}
	}
	for _, p := range currentStepPhrases {
		if strings.Contains(lower, p) {
			return ClassCurrentStep
		}
	}
	for _, p := range durationPhrases {
		if strings.Contains(lower, p) {
			return ClassDuration
		}
	}
	for _, p := range requirementsPhrases {
		if strings.Contains(lower, p) {
			return ClassRequirements
		}
	}
	for _, p := range progressPhrases {
		if strings.Contains(lower, p) {
			return ClassProgress
		}
	}

	return ClassUnknown
}

// #endregion keyword-classifier
