package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/fex/core/model"
)

// DecisionEvent is published once per terminal decision on a received offer:
// entry into WAITING, COUNTERED or DECLINED.
type DecisionEvent struct {
	OfferID     uuid.UUID
	ExchangeUID string
	State       model.ExecutionState
	TemplateID  string
	Counter     *model.PriceMap
}

// OutcomeEvent is published for each facility slot of an offering fan-out.
type OutcomeEvent struct {
	OfferID     uuid.UUID
	OfferingID  uuid.UUID
	FacilityUID string
	Accepted    bool
	Countered   bool
	Err         error
	Latency     time.Duration
}

// StateChangeEvent is published on every execution state transition.
type StateChangeEvent struct {
	OfferID uuid.UUID
	From    model.ExecutionState
	To      model.ExecutionState
	Success bool
}
