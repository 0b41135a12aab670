package prompt

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// #endregion

// #region manager

// Manager owns the single prompt context slot. At most one direct episode
// exists at a time; its handle must restore the saved context exactly once.
// A failed restore leaves the live context unknown, so the manager poisons
// itself and refuses all further switches.
type Manager struct {
	applier Applier
	policy  Policy
	slot    chan struct{}

	mu     sync.Mutex
	mode   Mode
	active string
}

// NewManager applies the base tracking context and returns a manager in
// ModeTracking.
func NewManager(applier Applier, policy Policy, base string) (*Manager, error) {
	if applier == nil {
		return nil, errors.New("prompt: nil applier")
	}
	if _, err := ParsePolicy(string(policy)); err != nil {
		return nil, err
	}
	if err := applier.Apply(base); err != nil {
		return nil, fmt.Errorf("apply base context: %w", err)
	}
	return &Manager{
		applier: applier,
		policy:  policy,
		slot:    make(chan struct{}, 1),
		mode:    ModeTracking,
		active:  base,
	}, nil
}

// Mode returns the current context state.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SwitchToDirect saves the active context and applies the direct one,
// returning the episode handle that must restore it. Under PolicyReject a
// held slot fails fast with ErrBusy; under PolicyBlock the call waits until
// the slot frees or ctx ends.
func (m *Manager) SwitchToDirect(ctx context.Context, direct string) (*Episode, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.mode == ModeError {
		m.mu.Unlock()
		m.release()
		return nil, ErrPoisoned
	}
	if m.mode == ModeDirect {
		// Holding the slot while another save is pending means the slot
		// accounting broke. Not recoverable.
		panic("prompt: switch while a save is pending")
	}
	saved := m.active
	if err := m.applier.Apply(direct); err != nil {
		// The live context is now uncertain; reinstate the saved one
		// before giving the slot back.
		if rerr := m.applier.Apply(saved); rerr != nil {
			m.poisonLocked(rerr)
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: apply direct failed (%v), then restore failed: %v", ErrRestoreFailed, err, rerr)
		}
		m.mu.Unlock()
		m.release()
		return nil, fmt.Errorf("apply direct context: %w", err)
	}
	m.mode = ModeDirect
	m.active = direct
	m.mu.Unlock()

	return &Episode{manager: m, saved: saved, direct: direct}, nil
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.policy == PolicyReject {
		select {
		case m.slot <- struct{}{}:
			return nil
		default:
			return ErrBusy
		}
	}
	select {
	case m.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for direct slot: %w", ErrBusy)
	}
}

func (m *Manager) release() {
	select {
	case <-m.slot:
	default:
	}
}

// poisonLocked marks the manager unusable and drains the slot so blocked
// switchers wake up and see the error state. Caller holds m.mu.
func (m *Manager) poisonLocked(err error) {
	m.mode = ModeError
	m.release()
	log.Printf("[PROMPT] poisoned, live context unknown: %v", err)
}

// #endregion manager

// #region episode

// Episode is the handle for one direct switch. Restore must be called
// exactly once; the deferred call in the executor owns that.
type Episode struct {
	manager *Manager
	saved   string
	direct  string

	mu       sync.Mutex
	restored bool
}

// Context returns the direct context this episode applied.
func (ep *Episode) Context() string {
	return ep.direct
}

// Restore reinstates the saved context and frees the slot. A second call
// returns ErrAlreadyRestored without touching anything. A failed apply
// poisons the manager and returns ErrRestoreFailed.
func (ep *Episode) Restore() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.restored {
		return ErrAlreadyRestored
	}
	ep.restored = true

	m := ep.manager
	m.mu.Lock()
	if err := m.applier.Apply(ep.saved); err != nil {
		m.poisonLocked(err)
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}
	m.mode = ModeTracking
	m.active = ep.saved
	m.mu.Unlock()
	m.release()
	return nil
}

// #endregion episode
