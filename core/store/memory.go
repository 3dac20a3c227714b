package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/voltmesh/fex/core/model"
)

// MemoryStore is an in-memory implementation of every store interface.
type MemoryStore struct {
	mu        sync.RWMutex
	offerings map[uuid.UUID]model.Offering
	offers    map[uuid.UUID]model.Offer
	events    map[uuid.UUID]model.OfferEvent
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		offerings: map[uuid.UUID]model.Offering{},
		offers:    map[uuid.UUID]model.Offer{},
		events:    map[uuid.UUID]model.OfferEvent{},
	}
}

// SaveOffering stores the offering.
func (s *MemoryStore) SaveOffering(_ context.Context, off model.Offering) error {
	s.mu.Lock()
	s.offerings[off.ID] = off
	s.mu.Unlock()
	return nil
}

// GetOffering returns the offering or ErrNotFound.
func (s *MemoryStore) GetOffering(_ context.Context, id uuid.UUID) (model.Offering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	off, ok := s.offerings[id]
	if !ok {
		return model.Offering{}, ErrNotFound
	}
	return off, nil
}

// SaveOffers stores all offers under one lock acquisition.
func (s *MemoryStore) SaveOffers(_ context.Context, offers []model.Offer) error {
	s.mu.Lock()
	for _, o := range offers {
		s.offers[o.ID] = o
	}
	s.mu.Unlock()
	return nil
}

// UpdateOffer replaces the stored offer.
func (s *MemoryStore) UpdateOffer(_ context.Context, offer model.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offers[offer.ID]; !ok {
		return ErrNotFound
	}
	s.offers[offer.ID] = offer
	return nil
}

// GetOffer returns the offer or ErrNotFound.
func (s *MemoryStore) GetOffer(_ context.Context, id uuid.UUID) (model.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.offers[id]
	if !ok {
		return model.Offer{}, ErrNotFound
	}
	return o, nil
}

// ListOffers returns every offer belonging to the offering.
func (s *MemoryStore) ListOffers(_ context.Context, offeringID uuid.UUID) ([]model.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Offer
	for _, o := range s.offers {
		if o.OfferingID == offeringID {
			res = append(res, o)
		}
	}
	return res, nil
}

// SaveEvent stores the offer event.
func (s *MemoryStore) SaveEvent(_ context.Context, ev model.OfferEvent) error {
	s.mu.Lock()
	s.events[ev.ID] = ev
	s.mu.Unlock()
	return nil
}

// UpdateEvent replaces the stored event.
func (s *MemoryStore) UpdateEvent(_ context.Context, ev model.OfferEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; !ok {
		return ErrNotFound
	}
	s.events[ev.ID] = ev
	return nil
}

// GetEvent returns the event or ErrNotFound.
func (s *MemoryStore) GetEvent(_ context.Context, id uuid.UUID) (model.OfferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return model.OfferEvent{}, ErrNotFound
	}
	return ev, nil
}
