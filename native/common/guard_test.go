package common

import (
	"errors"
	"testing"
)

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) bool { return p[module] }

func TestGuardPaused(t *testing.T) {
	pauses := pauseMap{"tipping": true}
	if err := Guard(pauses, "tipping"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected pause rejection, got %v", err)
	}
	if err := Guard(pauses, "other"); err != nil {
		t.Fatalf("unpaused module rejected: %v", err)
	}
	if err := Guard(nil, "tipping"); err != nil {
		t.Fatalf("nil view rejected: %v", err)
	}
}

func TestCallGuardRejectsNestedEntry(t *testing.T) {
	guard := &CallGuard{}
	if err := guard.Enter(); err != nil {
		t.Fatalf("first entry failed: %v", err)
	}
	if err := guard.Enter(); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected reentrancy rejection, got %v", err)
	}
	guard.Exit()
	if err := guard.Enter(); err != nil {
		t.Fatalf("entry after exit failed: %v", err)
	}
}
