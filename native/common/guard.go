package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// Module names accepted by PauseView.
const (
	ModuleLodging = "lodging"
	ModuleEscrow  = "escrow"
	ModuleToken   = "token"
)

type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects work for a paused module. A nil view pauses nothing.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseSet is a static PauseView built from configuration.
type PauseSet map[string]struct{}

// NewPauseSet returns a PauseSet containing modules.
func NewPauseSet(modules ...string) PauseSet {
	set := make(PauseSet, len(modules))
	for _, m := range modules {
		if m != "" {
			set[m] = struct{}{}
		}
	}
	return set
}

func (s PauseSet) IsPaused(module string) bool {
	_, ok := s[module]
	return ok
}
