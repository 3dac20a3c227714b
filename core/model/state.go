package model

// ExecutionState is the lifecycle stage of a negotiated offer.
type ExecutionState int

const (
	StateUnknown ExecutionState = iota
	StateWaiting
	StateExecuting
	StateCompleted
	StateDeclined
	StateCountered
	StateAborted
)

// String returns a human-readable representation of the state.
func (s ExecutionState) String() string {
	switch s {
	case StateUnknown:
		return "UNKNOWN"
	case StateWaiting:
		return "WAITING"
	case StateExecuting:
		return "EXECUTING"
	case StateCompleted:
		return "COMPLETED"
	case StateDeclined:
		return "DECLINED"
	case StateCountered:
		return "COUNTERED"
	case StateAborted:
		return "ABORTED"
	default:
		return "invalid"
	}
}

// IsTerminal reports whether no further transitions are allowed from s.
// COUNTERED is not terminal: it awaits a confirmation round.
func (s ExecutionState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateDeclined, StateAborted:
		return true
	default:
		return false
	}
}

// validTransitions holds the allowed next states per state. DECLINED is only
// reachable from UNKNOWN, COUNTERED only from WAITING and ABORTED only from
// EXECUTING.
var validTransitions = map[ExecutionState][]ExecutionState{
	StateUnknown:   {StateWaiting, StateDeclined},
	StateWaiting:   {StateExecuting, StateCountered},
	StateExecuting: {StateCompleted, StateAborted},
	StateCountered: {StateWaiting},
}

// CanTransition reports whether moving from s to next is a legal state
// transition.
func (s ExecutionState) CanTransition(next ExecutionState) bool {
	for _, n := range validTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// ParseExecutionState maps a state name back to its value. It returns false
// for unknown names.
func ParseExecutionState(name string) (ExecutionState, bool) {
	for s := StateUnknown; s <= StateAborted; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return StateUnknown, false
}
