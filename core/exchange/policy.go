package exchange

import "github.com/voltmesh/fex/core/model"

// CounterOfferPolicy decides whether a facility's counter-offer is taken.
// The accepted price map replaces the offer's working price map. This is a
// replaceable policy, not a protocol invariant.
type CounterOfferPolicy interface {
	// Accept returns true when the counter should be taken.
	Accept(offer model.Offer, counter model.PriceMap) bool
}

// AcceptAllCounters takes every counter-offer unconditionally. It trusts the
// facility's pricing; deployments wanting a ceiling should supply their own
// policy.
type AcceptAllCounters struct{}

// Accept always returns true.
func (AcceptAllCounters) Accept(model.Offer, model.PriceMap) bool { return true }

// PriceCapPolicy accepts a counter only while its apparent energy price does
// not exceed the cap expressed as a price map.
type PriceCapPolicy struct {
	Cap model.PriceComponents
}

// Accept compares the counter's apparent energy price against the cap.
func (p PriceCapPolicy) Accept(_ model.Offer, counter model.PriceMap) bool {
	return counter.Price.Compare(p.Cap) <= 0
}
