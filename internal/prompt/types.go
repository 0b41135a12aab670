package prompt

// #region imports
import (
	"errors"
	"fmt"
	"sync"
)

// #endregion

// #region mode

// Mode is the manager's current prompt context state.
type Mode string

const (
	// ModeTracking is the resting state: the step-tracking context is live.
	ModeTracking Mode = "tracking"
	// ModeDirect means a query context has displaced the tracking context.
	ModeDirect Mode = "direct"
	// ModeError is terminal: a restore failed and the live context is
	// unknown. Only a process restart leaves it.
	ModeError Mode = "error"
)

// #endregion mode

// #region policy

// Policy decides what a switch attempt does while another is in flight.
type Policy string

const (
	PolicyReject Policy = "reject"
	PolicyBlock  Policy = "block"
)

// ParsePolicy validates a policy name from configuration.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyReject, PolicyBlock:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown busy policy %q", s)
}

// #endregion policy

// #region errors

var (
	// ErrBusy reports a switch attempt while another episode holds the
	// slot. Retriable.
	ErrBusy = errors.New("context switch busy")
	// ErrPoisoned reports a switch attempt after a failed restore.
	ErrPoisoned = errors.New("prompt manager poisoned")
	// ErrRestoreFailed reports that the saved context could not be
	// reinstated. Fatal to the process.
	ErrRestoreFailed = errors.New("context restore failed")
	// ErrAlreadyRestored reports a second Restore on the same episode.
	ErrAlreadyRestored = errors.New("episode already restored")
)

// #endregion errors

// #region applier

// Applier installs a prompt context into the serving layer.
type Applier interface {
	Apply(prompt string) error
}

// MemoryApplier holds the applied context in memory. The in-process serving
// layer reads it per request.
type MemoryApplier struct {
	mu     sync.Mutex
	active string
}

// NewMemoryApplier returns an empty in-memory applier.
func NewMemoryApplier() *MemoryApplier {
	return &MemoryApplier{}
}

// Apply records the prompt as the active context.
func (a *MemoryApplier) Apply(prompt string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = prompt
	return nil
}

// Active returns the currently applied context.
func (a *MemoryApplier) Active() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// #endregion applier
