// Package features answers whether an optional module is switched on for a
// firm. Controllers receive a read-only Registry at construction.
package features

import (
	"github.com/google/uuid"
)

// Module names an optional feature area.
type Module string

const (
	ModuleContracts Module = "contracts"
	ModuleTransfers Module = "transfers"
)

// Registry reports module availability per firm.
type Registry interface {
	Enabled(firmID uuid.UUID, module Module) bool
}

// Snapshot is an immutable Registry built once from configuration. Modules
// default to enabled; Disabled switches a module off everywhere and
// FirmOverrides pin a value for single firms.
type Snapshot struct {
	disabled  map[Module]bool
	overrides map[uuid.UUID]map[Module]bool
}

// NewSnapshot copies its inputs so later mutation by the caller has no effect.
func NewSnapshot(disabled []Module, overrides map[uuid.UUID]map[Module]bool) *Snapshot {
	s := &Snapshot{
		disabled:  make(map[Module]bool, len(disabled)),
		overrides: make(map[uuid.UUID]map[Module]bool, len(overrides)),
	}
	for _, m := range disabled {
		s.disabled[m] = true
	}
	for firm, modules := range overrides {
		copied := make(map[Module]bool, len(modules))
		for m, on := range modules {
			copied[m] = on
		}
		s.overrides[firm] = copied
	}
	return s
}

// AllEnabled is a Snapshot with every module on.
func AllEnabled() *Snapshot {
	return NewSnapshot(nil, nil)
}

func (s *Snapshot) Enabled(firmID uuid.UUID, module Module) bool {
	if on, ok := s.overrides[firmID][module]; ok {
		return on
	}
	return !s.disabled[module]
}
