// Package events defines the negotiation and execution events emitted on the
// event bus.
//
// Available event types:
//   - DecisionEvent: facility-side evaluation outcome for an incoming offer
//   - OutcomeEvent: exchange-side per-facility fan-out result
//   - StateChangeEvent: execution state transition of an offer
package events
