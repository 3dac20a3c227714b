package facility

import (
	"github.com/voltmesh/fex/core/model"
)

// Decision is the outcome of evaluating an offered price map against the
// template registry.
type Decision struct {
	// State is WAITING (accepted), COUNTERED or DECLINED.
	State model.ExecutionState
	// TemplateID names the matching template when State is not DECLINED.
	TemplateID string
	// Counter holds the counter-offer when State is COUNTERED: the offered
	// price map with the apparent energy price replaced by the template's.
	Counter *model.PriceMap
}

// Evaluate applies first-fit matching of the offered price map against the
// ordered templates. For each template, in order:
//
//  1. the offered duration must not exceed the template duration,
//  2. power-flow direction must match on both components,
//  3. offered apparent power must not exceed the template's,
//  4. offered response-time min and max must both be at least the
//     template's; the facility will not promise a faster response than its
//     template allows.
//
// The first template passing all four decides the outcome: the offer is
// accepted at its own price when the offered apparent energy price is at
// least the template's, countered at the template's price otherwise. When no
// template passes, the offer is declined.
func Evaluate(offered model.PriceMap, templates []Template) Decision {
	for _, t := range templates {
		tm := t.PriceMap
		if offered.Duration > tm.Duration {
			continue
		}
		if !offered.Power.DirectionMatches(tm.Power) {
			continue
		}
		if offered.Power.ApparentPower() > tm.Power.ApparentPower() {
			continue
		}
		if offered.ResponseTime.Min < tm.ResponseTime.Min ||
			offered.ResponseTime.Max < tm.ResponseTime.Max {
			continue
		}
		if offered.Price.Compare(tm.Price) >= 0 {
			return Decision{State: model.StateWaiting, TemplateID: t.ID}
		}
		counter := offered
		counter.Price.ApparentEnergyPrice = tm.Price.ApparentEnergyPrice
		return Decision{State: model.StateCountered, TemplateID: t.ID, Counter: &counter}
	}
	return Decision{State: model.StateDeclined}
}
