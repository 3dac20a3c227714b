package model

import (
	"time"

	"github.com/google/uuid"
)

// Offering is a price map proposed by the exchange to one or more
// facilities. Child offers reference it by ID.
type Offering struct {
	ID        uuid.UUID `json:"id"`
	PriceMap  PriceMap  `json:"price_map"`
	StartTime time.Time `json:"start_time"`
	Created   time.Time `json:"created"`
}

// Offer is the exchange-side record of one offering instance addressed to a
// single facility. It is created at fan-out time, mutated by the facility's
// response and by the execution scheduler, and retained as an audit record
// after completion.
type Offer struct {
	ID          uuid.UUID `json:"id"`
	OfferingID  uuid.UUID `json:"offering_id"`
	FacilityUID string    `json:"facility_uid"`
	PriceMap    PriceMap  `json:"price_map"`
	StartTime   time.Time `json:"start_time"`

	Accepted     bool      `json:"accepted"`
	Proposed     bool      `json:"proposed"`
	Confirmed    bool      `json:"confirmed"`
	CounterOffer *PriceMap `json:"counter_offer,omitempty"`

	State                 ExecutionState `json:"state"`
	CompletedSuccessfully bool           `json:"completed_successfully"`
	Message               string         `json:"message,omitempty"`
}

// EndTime returns the instant at which the commitment ends.
func (o Offer) EndTime() time.Time {
	return o.StartTime.Add(o.PriceMap.Duration)
}

// OfferEvent is the facility-side record of a received offer, keyed by the
// same UUID as the exchange's Offer. The signature over (offer id, start
// instant, price map) is the sole integrity anchor between the two copies.
type OfferEvent struct {
	ID          uuid.UUID `json:"id"`
	ExchangeUID string    `json:"exchange_uid"`
	PriceMap    PriceMap  `json:"price_map"`
	StartTime   time.Time `json:"start_time"`

	CounterOffer *PriceMap `json:"counter_offer,omitempty"`
	// TemplateID names the accepted template that matched, when any did.
	TemplateID string `json:"template_id,omitempty"`

	State                 ExecutionState `json:"state"`
	CompletedSuccessfully bool           `json:"completed_successfully"`
	Message               string         `json:"message,omitempty"`
}

// EndTime returns the instant at which the commitment ends. A countered
// event keeps the offered duration: counters only change the price.
func (e OfferEvent) EndTime() time.Time {
	return e.StartTime.Add(e.PriceMap.Duration)
}
