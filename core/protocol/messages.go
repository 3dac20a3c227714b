// Package protocol defines the structured messages exchanged between an
// exchange and its facilities, and how each one maps to the ordered item list
// fed to the crypto signer. Wire encoding (JSON over the transport) is
// independent of the signature encoding.
package protocol

import (
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/fex/core/model"
)

// Route identifies the sender and receiver of an authenticated message.
type Route struct {
	SenderUID   string `json:"sender_uid"`
	ReceiverUID string `json:"receiver_uid"`
}

// Reversed returns the route for the reply direction.
func (r Route) Reversed() Route {
	return Route{SenderUID: r.ReceiverUID, ReceiverUID: r.SenderUID}
}

// Validate checks that both UIDs are present.
func (r Route) Validate() error {
	if r.SenderUID == "" {
		return &ValidationError{Field: "route.sender_uid", Reason: "missing"}
	}
	if r.ReceiverUID == "" {
		return &ValidationError{Field: "route.receiver_uid", Reason: "missing"}
	}
	return nil
}

// Matches checks the route against the expected sender and receiver,
// returning a ValidationError on mismatch.
func (r Route) Matches(senderUID, receiverUID string) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.SenderUID != senderUID {
		return &ValidationError{Field: "route.sender_uid", Reason: "unexpected sender " + r.SenderUID}
	}
	if r.ReceiverUID != receiverUID {
		return &ValidationError{Field: "route.receiver_uid", Reason: "unexpected receiver " + r.ReceiverUID}
	}
	return nil
}

// SignedOffer carries one per-facility offer from the exchange.
type SignedOffer struct {
	Route     Route          `json:"route"`
	OfferID   uuid.UUID      `json:"offer_id"`
	StartTime time.Time      `json:"start_time"`
	PriceMap  model.PriceMap `json:"price_map"`
	Signature []byte         `json:"signature"`
}

// SignatureItems returns the ordered item list covered by the signature:
// sender UID, receiver UID, offer id, start instant, price map.
func (o SignedOffer) SignatureItems() []any {
	return []any{o.Route.SenderUID, o.Route.ReceiverUID, o.OfferID, o.StartTime, o.PriceMap}
}

// Validate performs field checks on the offer.
func (o SignedOffer) Validate() error {
	if err := o.Route.Validate(); err != nil {
		return err
	}
	if o.OfferID == uuid.Nil {
		return &ValidationError{Field: "offer_id", Reason: "missing"}
	}
	if o.StartTime.IsZero() {
		return &ValidationError{Field: "start_time", Reason: "missing"}
	}
	if len(o.Signature) == 0 {
		return &ValidationError{Field: "signature", Reason: "missing"}
	}
	return nil
}

// OfferResponse is the facility's reply: accept, decline or counter-offer.
type OfferResponse struct {
	Route        Route           `json:"route"`
	OfferID      uuid.UUID       `json:"offer_id"`
	Accepted     bool            `json:"accepted"`
	CounterOffer *model.PriceMap `json:"counter_offer,omitempty"`
	Message      string          `json:"message,omitempty"`
	Signature    []byte          `json:"signature"`
}

// Countered reports whether the response carries a counter-offer.
func (r OfferResponse) Countered() bool { return r.CounterOffer != nil }

// SignatureItems returns the signed item list. An absent counter-offer is
// encoded as the zero-valued price map rather than being skipped.
func (r OfferResponse) SignatureItems() []any {
	counter := model.PriceMap{}
	if r.CounterOffer != nil {
		counter = *r.CounterOffer
	}
	return []any{r.Route.SenderUID, r.Route.ReceiverUID, r.OfferID, r.Accepted, counter}
}

// SignedStatus reports an execution state transition for an offer.
type SignedStatus struct {
	Route     Route                `json:"route"`
	OfferID   uuid.UUID            `json:"offer_id"`
	State     model.ExecutionState `json:"state"`
	Success   bool                 `json:"success"`
	Signature []byte               `json:"signature"`
}

// SignatureItems returns the signed item list.
func (s SignedStatus) SignatureItems() []any {
	return []any{s.Route.SenderUID, s.Route.ReceiverUID, s.OfferID, int32(s.State), s.Success}
}

// Validate performs field checks on the status report.
func (s SignedStatus) Validate() error {
	if err := s.Route.Validate(); err != nil {
		return err
	}
	if s.OfferID == uuid.Nil {
		return &ValidationError{Field: "offer_id", Reason: "missing"}
	}
	if len(s.Signature) == 0 {
		return &ValidationError{Field: "signature", Reason: "missing"}
	}
	return nil
}

// StatusResponse acknowledges a status report.
type StatusResponse struct {
	Route     Route     `json:"route"`
	OfferID   uuid.UUID `json:"offer_id"`
	Accepted  bool      `json:"accepted"`
	Signature []byte    `json:"signature"`
}

// SignatureItems returns the signed item list.
func (r StatusResponse) SignatureItems() []any {
	return []any{r.Route.SenderUID, r.Route.ReceiverUID, r.OfferID, r.Accepted}
}
