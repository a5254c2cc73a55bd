package assembler

import (
	"maps"
	"sync"

	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
)

// UnitState is the lifecycle state of a build unit within one session.
type UnitState string

const (
	StateDiscovered        UnitState = "Discovered"
	StateAssetsResolved    UnitState = "AssetsResolved"
	StatePayloadAggregated UnitState = "PayloadAggregated"
	StateInjected          UnitState = "Injected"
	StateRejected          UnitState = "Rejected"
)

// IsTerminal reports whether no further transition is possible from s.
func IsTerminal(s UnitState) bool {
	return s == StateInjected || s == StateRejected
}

func isAllowedTransition(from, to UnitState) bool {
	if IsTerminal(from) {
		return false
	}
	if to == StateRejected {
		return true
	}
	switch from {
	case StateDiscovered:
		return to == StateAssetsResolved
	case StateAssetsResolved:
		return to == StatePayloadAggregated
	case StatePayloadAggregated:
		return to == StateInjected
	default:
		return false
	}
}

// stateTable tracks unit states; it is shared by the resolution goroutines.
type stateTable struct {
	mu     sync.Mutex
	states map[string]UnitState
}

func newStateTable() *stateTable {
	return &stateTable{states: make(map[string]UnitState)}
}

func (t *stateTable) discover(unit string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[unit] = StateDiscovered
}

// transition moves unit to the next state and returns the previous one.
func (t *stateTable) transition(unit string, to UnitState) (UnitState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	from, ok := t.states[unit]
	if !ok {
		return "", errors.InternalError("unknown unit in session state").
			WithContext("unit", unit).
			Build()
	}
	if !isAllowedTransition(from, to) {
		return from, errors.InternalError("illegal unit state transition").
			WithContext("unit", unit).
			WithContext("from", string(from)).
			WithContext("to", string(to)).
			Build()
	}
	t.states[unit] = to
	return from, nil
}

func (t *stateTable) snapshot() map[string]UnitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.states)
}
