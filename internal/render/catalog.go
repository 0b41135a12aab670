package render

// #region imports
import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// #endregion

// #region types

// Step is one instruction inside an activity.
type Step struct {
	Index           int      `yaml:"index"`
	Instruction     string   `yaml:"instruction"`
	Hint            string   `yaml:"hint,omitempty"`
	DurationSeconds int      `yaml:"duration_seconds,omitempty"`
	Needs           []string `yaml:"needs,omitempty"`
}

// Activity is an ordered procedure the tracker can follow.
type Activity struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Steps []Step `yaml:"steps"`
}

// Catalog holds every activity the assistant knows how to narrate.
type Catalog struct {
	Activities []Activity `yaml:"activities"`

	byID map[string]*Activity
}

// #endregion types

// #region load

// LoadCatalog reads and validates a catalog YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	catalog, err := ParseCatalog(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return catalog, nil
}

// ParseCatalog unmarshals and validates catalog YAML.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	catalog.index()
	return &catalog, nil
}

func (c *Catalog) index() {
	c.byID = make(map[string]*Activity, len(c.Activities))
	for i := range c.Activities {
		c.byID[c.Activities[i].ID] = &c.Activities[i]
	}
}

// #endregion load

// #region validate

// Validate checks ids are unique and step indices run contiguously from 0.
func (c *Catalog) Validate() error {
	if len(c.Activities) == 0 {
		return fmt.Errorf("catalog has no activities")
	}
	seen := make(map[string]bool, len(c.Activities))
	for _, activity := range c.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity with empty id")
		}
		if seen[activity.ID] {
			return fmt.Errorf("duplicate activity id %q", activity.ID)
		}
		seen[activity.ID] = true
		if activity.Title == "" {
			return fmt.Errorf("activity %q has no title", activity.ID)
		}
		if len(activity.Steps) == 0 {
			return fmt.Errorf("activity %q has no steps", activity.ID)
		}
		for i, step := range activity.Steps {
			if step.Index != i {
				return fmt.Errorf("activity %q step %d has index %d, want contiguous from 0", activity.ID, i, step.Index)
			}
			if step.Instruction == "" {
				return fmt.Errorf("activity %q step %d has no instruction", activity.ID, i)
			}
			if step.DurationSeconds < 0 {
				return fmt.Errorf("activity %q step %d has negative duration", activity.ID, i)
			}
		}
	}
	return nil
}

// #endregion validate

// #region lookup

// Activity returns the activity by id.
func (c *Catalog) Activity(id string) (*Activity, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// Step returns the step at index.
func (a *Activity) Step(index int) (*Step, bool) {
	if index < 0 || index >= len(a.Steps) {
		return nil, false
	}
	return &a.Steps[index], true
}

// #endregion lookup
