package metrics

import (
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/fex/core/model"
)

// OfferOutcome represents one resolved facility slot of an offering fan-out.
type OfferOutcome struct {
	OfferingID      uuid.UUID
	OfferID         uuid.UUID
	FacilityUID     string
	State           model.ExecutionState
	Countered       bool
	ApparentPowerVA float64
	DurationSeconds float64
	Latency         time.Duration
	Time            time.Time
}

// MetricsSink records negotiation outcomes for observability purposes.
type MetricsSink interface {
	RecordOfferOutcome(outcomes []OfferOutcome) error
}

// Decision captures a facility-side evaluation result.
type Decision struct {
	OfferID     uuid.UUID
	ExchangeUID string
	State       model.ExecutionState
	TemplateID  string
	Time        time.Time
}

// DecisionRecorder is implemented by sinks able to record facility decisions.
type DecisionRecorder interface {
	RecordDecision(d Decision) error
}

// Transition captures one execution state change driven by the scheduler.
type Transition struct {
	OfferID uuid.UUID
	From    model.ExecutionState
	To      model.ExecutionState
	Success bool
	Time    time.Time
}

// TransitionRecorder is implemented by sinks able to record state
// transitions.
type TransitionRecorder interface {
	RecordTransition(t Transition) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordOfferOutcome([]OfferOutcome) error { return nil }
func (NopSink) RecordDecision(Decision) error           { return nil }
func (NopSink) RecordTransition(Transition) error       { return nil }
