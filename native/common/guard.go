package common

import "errors"

// ErrPoolsPaused is returned by every pool entry point while the factory-level
// pause flag is set.
var ErrPoolsPaused = errors.New("Liquidity Pools are paused")

// PauseView reports whether a module is currently halted.
type PauseView interface {
	IsPaused() bool
}

// Guard rejects the operation when the supplied view reports a pause. A nil
// view means the module has no pause collaborator wired and runs unguarded.
func Guard(p PauseView) error {
	if p == nil {
		return nil
	}
	if p.IsPaused() {
		return ErrPoolsPaused
	}
	return nil
}
