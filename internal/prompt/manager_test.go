package prompt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptApplier pops one scripted error per Apply call; nil entries apply
// normally. An exhausted script keeps applying normally.
type scriptApplier struct {
	mu     sync.Mutex
	active string
	errs   []error
}

func (a *scriptApplier) Apply(prompt string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var err error
	if len(a.errs) > 0 {
		err = a.errs[0]
		a.errs = a.errs[1:]
	}
	if err != nil {
		return err
	}
	a.active = prompt
	return nil
}

func (a *scriptApplier) current() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func TestManagerSwitchAndRestore(t *testing.T) {
	applier := NewMemoryApplier()
	m, err := NewManager(applier, PolicyReject, "tracking: watch the pour")
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if applier.Active() != "tracking: watch the pour" {
		t.Fatalf("base context not applied, got %q", applier.Active())
	}

	ep, err := m.SwitchToDirect(context.Background(), "direct: answer the wearer")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if m.Mode() != ModeDirect {
		t.Fatalf("expected direct mode, got %s", m.Mode())
	}
	if applier.Active() != "direct: answer the wearer" {
		t.Fatalf("direct context not applied, got %q", applier.Active())
	}
	if ep.Context() != "direct: answer the wearer" {
		t.Fatalf("episode context mismatch: %q", ep.Context())
	}

	if err := ep.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if m.Mode() != ModeTracking {
		t.Fatalf("expected tracking mode, got %s", m.Mode())
	}
	if applier.Active() != "tracking: watch the pour" {
		t.Fatalf("saved context not reinstated byte for byte, got %q", applier.Active())
	}
}

func TestManagerSecondRestoreFails(t *testing.T) {
	applier := NewMemoryApplier()
	m, _ := NewManager(applier, PolicyReject, "base")
	ep, err := m.SwitchToDirect(context.Background(), "direct")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}

	if err := ep.Restore(); err != nil {
		t.Fatalf("first restore: %v", err)
	}
	if err := ep.Restore(); !errors.Is(err, ErrAlreadyRestored) {
		t.Fatalf("expected ErrAlreadyRestored, got %v", err)
	}
	if applier.Active() != "base" {
		t.Fatalf("second restore must not touch the context, got %q", applier.Active())
	}
}

func TestManagerRejectPolicyBusy(t *testing.T) {
	m, _ := NewManager(NewMemoryApplier(), PolicyReject, "base")
	ep, err := m.SwitchToDirect(context.Background(), "first")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}

	if _, err := m.SwitchToDirect(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while slot held, got %v", err)
	}

	if err := ep.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	ep2, err := m.SwitchToDirect(context.Background(), "second")
	if err != nil {
		t.Fatalf("switch after restore: %v", err)
	}
	ep2.Restore()
}

func TestManagerBlockPolicyWaits(t *testing.T) {
	m, _ := NewManager(NewMemoryApplier(), PolicyBlock, "base")
	ep, err := m.SwitchToDirect(context.Background(), "first")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		ep2, err := m.SwitchToDirect(context.Background(), "second")
		if err == nil {
			ep2.Restore()
		}
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("second switch returned %v while slot was held", err)
	default:
	}

	if err := ep.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("blocked switch should succeed after restore, got %v", err)
	}
}

func TestManagerBlockPolicyHonorsContext(t *testing.T) {
	m, _ := NewManager(NewMemoryApplier(), PolicyBlock, "base")
	ep, err := m.SwitchToDirect(context.Background(), "first")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	defer ep.Restore()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := m.SwitchToDirect(ctx, "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy after wait timeout, got %v", err)
	}
}

// A failed direct apply reinstates the saved context and frees the slot.
func TestManagerApplyFailureRestoresSaved(t *testing.T) {
	applier := &scriptApplier{errs: []error{nil, errors.New("serving layer down"), nil}}
	m, err := NewManager(applier, PolicyReject, "base")
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	_, err = m.SwitchToDirect(context.Background(), "direct")
	if err == nil {
		t.Fatal("expected switch error")
	}
	if errors.Is(err, ErrRestoreFailed) || errors.Is(err, ErrBusy) {
		t.Fatalf("apply failure misclassified: %v", err)
	}
	if m.Mode() != ModeTracking {
		t.Fatalf("expected tracking mode after recovery, got %s", m.Mode())
	}
	if applier.current() != "base" {
		t.Fatalf("saved context not reinstated, got %q", applier.current())
	}

	// Slot must be free again.
	ep, err := m.SwitchToDirect(context.Background(), "direct")
	if err != nil {
		t.Fatalf("switch after recovery: %v", err)
	}
	ep.Restore()
}

func TestManagerPoisonOnDoubleApplyFailure(t *testing.T) {
	applier := &scriptApplier{errs: []error{nil, errors.New("apply failed"), errors.New("restore failed")}}
	m, err := NewManager(applier, PolicyReject, "base")
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	_, err = m.SwitchToDirect(context.Background(), "direct")
	if !errors.Is(err, ErrRestoreFailed) {
		t.Fatalf("expected ErrRestoreFailed, got %v", err)
	}
	if m.Mode() != ModeError {
		t.Fatalf("expected error mode, got %s", m.Mode())
	}
	if _, err := m.SwitchToDirect(context.Background(), "again"); !errors.Is(err, ErrPoisoned) {
		t.Fatalf("expected ErrPoisoned, got %v", err)
	}
}

func TestManagerRestoreFailurePoisons(t *testing.T) {
	applier := &scriptApplier{errs: []error{nil, nil, errors.New("restore failed")}}
	m, err := NewManager(applier, PolicyReject, "base")
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ep, err := m.SwitchToDirect(context.Background(), "direct")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}

	if err := ep.Restore(); !errors.Is(err, ErrRestoreFailed) {
		t.Fatalf("expected ErrRestoreFailed, got %v", err)
	}
	if m.Mode() != ModeError {
		t.Fatalf("expected error mode, got %s", m.Mode())
	}
	if _, err := m.SwitchToDirect(context.Background(), "again"); !errors.Is(err, ErrPoisoned) {
		t.Fatalf("expected ErrPoisoned, got %v", err)
	}
}

// A switcher blocked on the slot must not hang when the holder poisons the
// manager.
func TestManagerPoisonWakesBlockedSwitcher(t *testing.T) {
	applier := &scriptApplier{errs: []error{nil, nil, errors.New("restore failed")}}
	m, err := NewManager(applier, PolicyBlock, "base")
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ep, err := m.SwitchToDirect(context.Background(), "direct")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.SwitchToDirect(context.Background(), "second")
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)

	if err := ep.Restore(); !errors.Is(err, ErrRestoreFailed) {
		t.Fatalf("expected ErrRestoreFailed, got %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrPoisoned) {
			t.Fatalf("expected ErrPoisoned for the waiter, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked switcher never woke after poison")
	}
}

// The slot makes a nested save unreachable; if the mode says one is pending
// anyway, the accounting is broken and the switch must not proceed.
func TestManagerNestedSavePanics(t *testing.T) {
	m, _ := NewManager(NewMemoryApplier(), PolicyReject, "base")
	m.mode = ModeDirect

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for switch while a save is pending")
		}
	}()
	m.SwitchToDirect(context.Background(), "direct")
}

func TestManagerRejectsUnknownPolicy(t *testing.T) {
	if _, err := NewManager(NewMemoryApplier(), Policy("sometimes"), "base"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestManagerBaseApplyFailure(t *testing.T) {
	applier := &scriptApplier{errs: []error{errors.New("serving layer down")}}
	if _, err := NewManager(applier, PolicyReject, "base"); err == nil {
		t.Fatal("expected error when base context cannot be applied")
	}
}
