package model

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltmesh/fex/core/sigcodec"
)

// PowerComponents describes a power flow as real and reactive components.
// Positive values express export toward the grid, negative values import.
type PowerComponents struct {
	RealPower     int64 `json:"real_power"`     // watts
	ReactivePower int64 `json:"reactive_power"` // volt-amperes reactive
}

// ApparentPower returns the combined apparent power in volt-amperes.
func (p PowerComponents) ApparentPower() float64 {
	return math.Sqrt(float64(p.RealPower)*float64(p.RealPower) +
		float64(p.ReactivePower)*float64(p.ReactivePower))
}

// DirectionMatches reports whether both components of p flow in the same
// direction as those of o. Zero is treated as its own direction.
func (p PowerComponents) DirectionMatches(o PowerComponents) bool {
	return sign(p.RealPower) == sign(o.RealPower) &&
		sign(p.ReactivePower) == sign(o.ReactivePower)
}

func sign(v int64) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

// SignatureSize returns the encoded size of p for signing.
func (p PowerComponents) SignatureSize() int {
	return 2 * sigcodec.Int64Size
}

// AppendSignature appends real then reactive power to buf.
func (p PowerComponents) AppendSignature(buf []byte) []byte {
	buf = sigcodec.AppendInt64(buf, p.RealPower)
	return sigcodec.AppendInt64(buf, p.ReactivePower)
}

// PriceComponents carries the unit prices of a price map in a single
// currency. Prices are expressed per energy unit (kWh for real energy,
// kVAh for apparent energy).
type PriceComponents struct {
	Currency            string          `json:"currency"`
	RealEnergyPrice     decimal.Decimal `json:"real_energy_price"`
	ApparentEnergyPrice decimal.Decimal `json:"apparent_energy_price"`
}

// Compare orders p against o numerically on the apparent energy price.
// It returns -1, 0 or 1.
func (p PriceComponents) Compare(o PriceComponents) int {
	return p.ApparentEnergyPrice.Cmp(o.ApparentEnergyPrice)
}

// Equal reports structural equality, with numeric comparison of prices.
func (p PriceComponents) Equal(o PriceComponents) bool {
	return p.Currency == o.Currency &&
		p.RealEnergyPrice.Equal(o.RealEnergyPrice) &&
		p.ApparentEnergyPrice.Equal(o.ApparentEnergyPrice)
}

// SignatureSize returns the encoded size of p for signing. Each price is
// prefixed by the currency code so that two variable-length strings are never
// adjacent in the encoded stream.
func (p PriceComponents) SignatureSize() int {
	return 2*len(p.Currency) + 2*sigcodec.DecimalSize
}

// AppendSignature appends currency and real energy price, then currency and
// apparent energy price.
func (p PriceComponents) AppendSignature(buf []byte) []byte {
	buf = sigcodec.AppendString(buf, p.Currency)
	buf = sigcodec.AppendDecimal(buf, p.RealEnergyPrice)
	buf = sigcodec.AppendString(buf, p.Currency)
	return sigcodec.AppendDecimal(buf, p.ApparentEnergyPrice)
}

// DurationRange bounds a duration between Min and Max. Min <= Max is a
// construction contract maintained by callers, not enforced here.
type DurationRange struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// SignatureSize returns the encoded size of r for signing.
func (r DurationRange) SignatureSize() int {
	return 2 * sigcodec.TemporalSize
}

// AppendSignature appends min then max.
func (r DurationRange) AppendSignature(buf []byte) []byte {
	buf = sigcodec.AppendDuration(buf, r.Min)
	return sigcodec.AppendDuration(buf, r.Max)
}

// PriceMap is a time-boxed energy commitment: a power bound, a commitment
// duration, an acceptable response time window and a price. Values are
// immutable by convention; treat copies as snapshots.
type PriceMap struct {
	Power        PowerComponents `json:"power"`
	Duration     time.Duration   `json:"duration"`
	ResponseTime DurationRange   `json:"response_time"`
	Price        PriceComponents `json:"price"`
}

// DurationHours returns the commitment duration in fractional hours.
func (m PriceMap) DurationHours() float64 {
	return m.Duration.Hours()
}

// ApparentEnergyCost computes apparentEnergyPrice * apparentPower *
// durationHours, the total cost of the commitment at the map's price.
func (m PriceMap) ApparentEnergyCost() decimal.Decimal {
	return m.Price.ApparentEnergyPrice.
		Mul(decimal.NewFromFloat(m.Power.ApparentPower())).
		Mul(decimal.NewFromFloat(m.DurationHours()))
}

// Equal reports structural equality of two price maps.
func (m PriceMap) Equal(o PriceMap) bool {
	return m.Power == o.Power &&
		m.Duration == o.Duration &&
		m.ResponseTime == o.ResponseTime &&
		m.Price.Equal(o.Price)
}

// SignatureSize returns the encoded size of m for signing.
func (m PriceMap) SignatureSize() int {
	return m.Power.SignatureSize() +
		sigcodec.TemporalSize +
		m.ResponseTime.SignatureSize() +
		m.Price.SignatureSize()
}

// AppendSignature appends the members of m in fixed order: power, duration,
// response time range, price. The order is normative; reordering breaks
// cross-implementation signature verification.
func (m PriceMap) AppendSignature(buf []byte) []byte {
	buf = m.Power.AppendSignature(buf)
	buf = sigcodec.AppendDuration(buf, m.Duration)
	buf = m.ResponseTime.AppendSignature(buf)
	return m.Price.AppendSignature(buf)
}
