package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"stepassist/internal/observe"
	"stepassist/internal/route"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string         `json:"description"`
	Config      FixtureConfig  `json:"config"`
	Events      []FixtureEvent `json:"events"`
	Expected    []Expected     `json:"expected_results"`
}

// FixtureEvent mirrors replay.Event with JSON tags. Observation fields are
// meaningful when kind is "observation", text and image_ref when "query".
type FixtureEvent struct {
	Kind       string  `json:"kind"`
	ID         string  `json:"id"`
	ActivityID string  `json:"activity_id,omitempty"`
	StepIndex  int     `json:"step_index,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Timestamp  string  `json:"timestamp,omitempty"`
	Text       string  `json:"text,omitempty"`
	ImageRef   string  `json:"image_ref,omitempty"`
}

// FixtureConfig bundles the tunable settings for a replay run. Zero fields
// fall back to the live defaults, so fixtures only state what they pin.
type FixtureConfig struct {
	HighConfidence     float64 `json:"high_confidence"`
	MediumConfidence   float64 `json:"medium_confidence"`
	MaxForwardJump     int     `json:"max_forward_jump"`
	Confirmations      int     `json:"confirmations"`
	ConfirmationTTLSec int     `json:"confirmation_ttl_seconds"`
	DecisionThreshold  float64 `json:"decision_threshold"`
	MaxQueryLength     int     `json:"max_query_length"`
	WindowCapacity     int     `json:"window_capacity"`
	MaxActivities      int     `json:"max_activities"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToEvent converts a FixtureEvent to a domain Event.
func (fe *FixtureEvent) ToEvent() (Event, error) {
	switch EventKind(fe.Kind) {
	case KindObservation:
		at, err := time.Parse(time.RFC3339Nano, fe.Timestamp)
		if err != nil {
			return Event{}, fmt.Errorf("event %s: parse timestamp: %w", fe.ID, err)
		}
		return Event{
			Kind: KindObservation,
			ID:   fe.ID,
			Obs: observe.Observation{
				ActivityID: fe.ActivityID,
				StepIndex:  fe.StepIndex,
				Confidence: fe.Confidence,
				ObservedAt: at,
			},
		}, nil
	case KindQuery:
		return Event{
			Kind:  KindQuery,
			ID:    fe.ID,
			Query: route.Query{ID: fe.ID, Text: fe.Text, ImageRef: fe.ImageRef},
		}, nil
	default:
		return Event{}, fmt.Errorf("event %s: unknown kind %q", fe.ID, fe.Kind)
	}
}

// DomainEvents converts every fixture event, failing on the first bad one.
func (f *Fixture) DomainEvents() ([]Event, error) {
	events := make([]Event, 0, len(f.Events))
	for i := range f.Events {
		ev, err := f.Events[i].ToEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig, filling
// unset fields from the defaults.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	config := DefaultReplayConfig()
	if fc.HighConfidence > 0 {
		config.GuardConfig.HighConfidence = fc.HighConfidence
	}
	if fc.MediumConfidence > 0 {
		config.GuardConfig.MediumConfidence = fc.MediumConfidence
		config.RouteConfig.MediumConfidence = fc.MediumConfidence
	}
	if fc.MaxForwardJump > 0 {
		config.GuardConfig.MaxForwardJump = fc.MaxForwardJump
	}
	if fc.Confirmations > 0 {
		config.GuardConfig.Confirmations = fc.Confirmations
	}
	if fc.ConfirmationTTLSec > 0 {
		config.GuardConfig.ConfirmationTTL = time.Duration(fc.ConfirmationTTLSec) * time.Second
	}
	if fc.DecisionThreshold > 0 {
		config.RouteConfig.DecisionThreshold = fc.DecisionThreshold
	}
	if fc.MaxQueryLength > 0 {
		config.RouteConfig.MaxQueryLength = fc.MaxQueryLength
	}
	if fc.WindowCapacity > 0 {
		config.WindowCapacity = fc.WindowCapacity
	}
	if fc.MaxActivities > 0 {
		config.MaxActivities = fc.MaxActivities
	}
	return config
}

// #endregion fixture-loader
