package common

import "errors"

// ErrModulePaused is returned by Guard when the named module is paused.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the operator's pause toggles to native modules.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects mutating operations while the module is paused. A nil view
// means pausing is not wired and every call passes.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
