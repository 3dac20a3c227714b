package model

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testPriceMap() PriceMap {
	return PriceMap{
		Power:    PowerComponents{RealPower: 30000, ReactivePower: 40000},
		Duration: 2 * time.Hour,
		ResponseTime: DurationRange{
			Min: 10 * time.Second,
			Max: 5 * time.Minute,
		},
		Price: PriceComponents{
			Currency:            "EUR",
			RealEnergyPrice:     decimal.RequireFromString("0.15"),
			ApparentEnergyPrice: decimal.RequireFromString("0.18"),
		},
	}
}

func TestApparentPower(t *testing.T) {
	p := PowerComponents{RealPower: 30000, ReactivePower: 40000}
	if got := p.ApparentPower(); math.Abs(got-50000) > 1e-6 {
		t.Fatalf("apparent power: got %f", got)
	}
}

func TestDirectionMatches(t *testing.T) {
	cases := []struct {
		a, b PowerComponents
		want bool
	}{
		{PowerComponents{1, 1}, PowerComponents{100, 100}, true},
		{PowerComponents{-1, 1}, PowerComponents{-100, 100}, true},
		{PowerComponents{1, 1}, PowerComponents{-1, 1}, false},
		{PowerComponents{0, 1}, PowerComponents{0, 2}, true},
		// Zero is its own direction.
		{PowerComponents{0, 1}, PowerComponents{1, 1}, false},
	}
	for i, c := range cases {
		if got := c.a.DirectionMatches(c.b); got != c.want {
			t.Errorf("case %d: got %t want %t", i, got, c.want)
		}
	}
}

func TestPriceCompare(t *testing.T) {
	low := PriceComponents{ApparentEnergyPrice: decimal.RequireFromString("0.10")}
	high := PriceComponents{ApparentEnergyPrice: decimal.RequireFromString("0.20")}
	if low.Compare(high) != -1 || high.Compare(low) != 1 || low.Compare(low) != 0 {
		t.Fatal("price comparison ordering broken")
	}
}

func TestPriceEqualNumeric(t *testing.T) {
	a := PriceComponents{Currency: "EUR", RealEnergyPrice: decimal.RequireFromString("0.10"), ApparentEnergyPrice: decimal.RequireFromString("0.5")}
	b := PriceComponents{Currency: "EUR", RealEnergyPrice: decimal.RequireFromString("0.1"), ApparentEnergyPrice: decimal.RequireFromString("0.50")}
	if !a.Equal(b) {
		t.Fatal("numerically equal prices must compare equal")
	}
	b.Currency = "USD"
	if a.Equal(b) {
		t.Fatal("different currencies must not compare equal")
	}
}

func TestPriceMapSignatureSize(t *testing.T) {
	m := testPriceMap()
	buf := m.AppendSignature(nil)
	if len(buf) != m.SignatureSize() {
		t.Fatalf("size mismatch: appended %d, declared %d", len(buf), m.SignatureSize())
	}
	// power (2*8) + duration (12) + response range (2*12) + price (2*3 + 2*12)
	want := 16 + 12 + 24 + 6 + 24
	if m.SignatureSize() != want {
		t.Fatalf("declared size: got %d want %d", m.SignatureSize(), want)
	}
}

func TestPriceMapSignatureDeterministic(t *testing.T) {
	m := testPriceMap()
	a := m.AppendSignature(nil)
	b := m.AppendSignature(nil)
	if string(a) != string(b) {
		t.Fatal("encoding must be deterministic")
	}
	m2 := m
	m2.Duration += time.Second
	if string(m2.AppendSignature(nil)) == string(a) {
		t.Fatal("changed duration must change the encoding")
	}
}

func TestApparentEnergyCost(t *testing.T) {
	m := testPriceMap()
	// 0.18 * 50000 VA * 2 h = 18000
	got := m.ApparentEnergyCost()
	want := decimal.RequireFromString("18000")
	if !got.Round(6).Equal(want) {
		t.Fatalf("cost: got %s want %s", got, want)
	}
}

func TestPriceMapEqual(t *testing.T) {
	a := testPriceMap()
	b := testPriceMap()
	if !a.Equal(b) {
		t.Fatal("identical maps must be equal")
	}
	b.Power.RealPower++
	if a.Equal(b) {
		t.Fatal("different power must not be equal")
	}
}
