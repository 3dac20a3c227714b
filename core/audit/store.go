// Package audit persists a queryable trail of negotiation decisions. Both
// sides append one record per terminal decision; records survive after the
// negotiation completes.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/fex/core/model"
)

// LogRecord captures one negotiation decision.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	// Party is "exchange" or "facility", naming which side recorded the
	// decision.
	Party       string               `json:"party"`
	OfferID     uuid.UUID            `json:"offer_id"`
	OfferingID  uuid.UUID            `json:"offering_id,omitempty"`
	FacilityUID string               `json:"facility_uid,omitempty"`
	ExchangeUID string               `json:"exchange_uid,omitempty"`
	State       model.ExecutionState `json:"state"`
	Countered   bool                 `json:"countered"`
	TemplateID  string               `json:"template_id,omitempty"`
	PriceMap    model.PriceMap       `json:"price_map"`
	Counter     *model.PriceMap      `json:"counter,omitempty"`
	Message     string               `json:"message,omitempty"`
}

// LogQuery defines filters for retrieving records. Zero fields match
// everything.
type LogQuery struct {
	Start       time.Time
	End         time.Time
	OfferID     uuid.UUID
	FacilityUID string
	State       model.ExecutionState
}

func (q LogQuery) matches(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.OfferID != uuid.Nil && r.OfferID != q.OfferID {
		return false
	}
	if q.FacilityUID != "" && r.FacilityUID != q.FacilityUID {
		return false
	}
	if q.State != model.StateUnknown && r.State != q.State {
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}
