package common

import "errors"

var (
	ErrModulePaused  = errors.New("module paused")
	ErrReentrantCall = errors.New("reentrant call")
)

// PauseView reports whether a module's mutating entry points are disabled.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the named module is paused. A nil view or empty
// module name means pausing is not wired and the call proceeds.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// CallGuard is a per-engine busy flag. Execution is single-threaded per unit
// of work, so this is not a lock: it only rejects a nested call back into the
// same engine while an outer call is still in progress.
type CallGuard struct {
	busy bool
}

// Enter marks the engine busy. It fails if a call is already in progress.
func (g *CallGuard) Enter() error {
	if g == nil {
		return nil
	}
	if g.busy {
		return ErrReentrantCall
	}
	g.busy = true
	return nil
}

// Exit clears the busy flag. Callers are expected to defer it immediately
// after a successful Enter.
func (g *CallGuard) Exit() {
	if g == nil {
		return
	}
	g.busy = false
}
