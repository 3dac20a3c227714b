// Package store defines the persistence contracts for negotiation entities.
// The negotiation engine only depends on these interfaces; infra/store
// provides the SQLite implementation and MemoryStore serves tests and
// single-process deployments.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/voltmesh/fex/core/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("store: not found")

// OfferingStore persists exchange-side offerings.
type OfferingStore interface {
	SaveOffering(ctx context.Context, off model.Offering) error
	GetOffering(ctx context.Context, id uuid.UUID) (model.Offering, error)
}

// OfferStore persists exchange-side offers. SaveOffers must be atomic: either
// every offer of a fan-out is durable or none is, so that staged RPC dispatch
// can key off a single commit.
type OfferStore interface {
	SaveOffers(ctx context.Context, offers []model.Offer) error
	UpdateOffer(ctx context.Context, offer model.Offer) error
	GetOffer(ctx context.Context, id uuid.UUID) (model.Offer, error)
	ListOffers(ctx context.Context, offeringID uuid.UUID) ([]model.Offer, error)
}

// OfferEventStore persists facility-side offer events.
type OfferEventStore interface {
	SaveEvent(ctx context.Context, ev model.OfferEvent) error
	UpdateEvent(ctx context.Context, ev model.OfferEvent) error
	GetEvent(ctx context.Context, id uuid.UUID) (model.OfferEvent, error)
}

// ExchangeStore groups the stores an exchange node needs.
type ExchangeStore interface {
	OfferingStore
	OfferStore
}
