package protocol

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/voltmesh/fex/core/model"
)

// ValidationError reports a malformed message: bad route, missing required
// field or out-of-range value. Requests failing validation are rejected
// immediately and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StateConflictError reports an operation attempted on an offer that is not
// in the expected execution state.
type StateConflictError struct {
	OfferID uuid.UUID
	State   model.ExecutionState
	Want    model.ExecutionState
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("offer %s is %s, want %s", e.OfferID, e.State, e.Want)
}
