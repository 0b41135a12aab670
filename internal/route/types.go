package route

// #region mode

// Mode selects how a query gets answered.
type Mode string

const (
	// ModeDirect sends the query to the vision-language model.
	ModeDirect Mode = "direct"
	// ModeTemplate answers from the step catalog without a model call.
	ModeTemplate Mode = "template"
)

// #endregion mode

// #region class

// Class is the recognized intent of an assistance query.
type Class string

const (
	ClassCurrentStep  Class = "current_step"
	ClassNextStep     Class = "next_step"
	ClassDuration     Class = "duration"
	ClassRequirements Class = "requirements"
	ClassProgress     Class = "progress"
	ClassUnknown      Class = "unknown"
)

// #endregion class

// #region query

// Query is one assistance request from the wearer.
type Query struct {
	ID       string `json:"query_id"`
	Text     string `json:"text"`
	ImageRef string `json:"image_ref,omitempty"`
}

// #endregion query

// #region classifier

// Classifier maps query text to an intent class.
type Classifier interface {
	Classify(text string) Class
}

// #endregion classifier

// #region config

// Config tunes the routing score.
type Config struct {
	// DecisionThreshold is the score at or above which a query goes direct.
	DecisionThreshold float64
	// MaxQueryLength is the character count above which a query is
	// considered too long for a template answer.
	MaxQueryLength int
	// MediumConfidence marks tracked state below it as low trust. Shared
	// with the guard's medium band floor.
	MediumConfidence float64
}

// DefaultConfig returns the routing defaults.
func DefaultConfig() Config {
	return Config{
		DecisionThreshold: 0.5,
		MaxQueryLength:    200,
		MediumConfidence:  0.40,
	}
}

// #endregion config

// #region decision

// Decision is the routing outcome for one query.
type Decision struct {
	Mode   Mode
	Score  float64
	Class  Class
	Reason string
}

// #endregion decision
