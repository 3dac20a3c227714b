package facility

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltmesh/fex/core/model"
)

func templatePriceMap() model.PriceMap {
	return model.PriceMap{
		Power:    model.PowerComponents{RealPower: 100_000, ReactivePower: 20_000},
		Duration: 4 * time.Hour,
		ResponseTime: model.DurationRange{
			Min: 30 * time.Second,
			Max: 10 * time.Minute,
		},
		Price: model.PriceComponents{
			Currency:            "EUR",
			RealEnergyPrice:     decimal.RequireFromString("0.12"),
			ApparentEnergyPrice: decimal.RequireFromString("0.15"),
		},
	}
}

func offerWithin() model.PriceMap {
	pm := templatePriceMap()
	pm.Power = model.PowerComponents{RealPower: 50_000, ReactivePower: 10_000}
	pm.Duration = 2 * time.Hour
	pm.ResponseTime = model.DurationRange{Min: time.Minute, Max: 15 * time.Minute}
	pm.Price.ApparentEnergyPrice = decimal.RequireFromString("0.20")
	return pm
}

func TestEvaluateAccepts(t *testing.T) {
	dec := Evaluate(offerWithin(), []Template{{ID: "t1", PriceMap: templatePriceMap()}})
	if dec.State != model.StateWaiting {
		t.Fatalf("state: %s", dec.State)
	}
	if dec.TemplateID != "t1" {
		t.Fatalf("template: %s", dec.TemplateID)
	}
	if dec.Counter != nil {
		t.Fatal("accepted offer must not carry a counter")
	}
}

func TestEvaluateCountersOnPrice(t *testing.T) {
	offered := offerWithin()
	offered.Price.ApparentEnergyPrice = decimal.RequireFromString("0.10")

	dec := Evaluate(offered, []Template{{ID: "t1", PriceMap: templatePriceMap()}})
	if dec.State != model.StateCountered {
		t.Fatalf("state: %s", dec.State)
	}
	if dec.Counter == nil {
		t.Fatal("counter missing")
	}
	// The counter is the offer with the template's apparent price; everything
	// else is untouched.
	if !dec.Counter.Price.ApparentEnergyPrice.Equal(decimal.RequireFromString("0.15")) {
		t.Fatalf("counter price: %s", dec.Counter.Price.ApparentEnergyPrice)
	}
	if dec.Counter.Power != offered.Power || dec.Counter.Duration != offered.Duration {
		t.Fatal("counter must keep the offered power and duration")
	}
	if !dec.Counter.Price.RealEnergyPrice.Equal(offered.Price.RealEnergyPrice) {
		t.Fatal("counter must keep the offered real energy price")
	}
}

func TestEvaluateEqualPriceAccepts(t *testing.T) {
	offered := offerWithin()
	offered.Price.ApparentEnergyPrice = decimal.RequireFromString("0.15")
	dec := Evaluate(offered, []Template{{ID: "t1", PriceMap: templatePriceMap()}})
	if dec.State != model.StateWaiting {
		t.Fatalf("equal price must accept, got %s", dec.State)
	}
}

func TestEvaluateDeclines(t *testing.T) {
	cases := map[string]func(*model.PriceMap){
		"duration too long": func(pm *model.PriceMap) { pm.Duration = 8 * time.Hour },
		"direction mismatch": func(pm *model.PriceMap) {
			pm.Power.RealPower = -pm.Power.RealPower
		},
		"power too high": func(pm *model.PriceMap) {
			pm.Power = model.PowerComponents{RealPower: 500_000, ReactivePower: 100_000}
		},
		"response min too fast": func(pm *model.PriceMap) { pm.ResponseTime.Min = time.Second },
		"response max too fast": func(pm *model.PriceMap) { pm.ResponseTime.Max = time.Minute },
	}
	for name, mutate := range cases {
		offered := offerWithin()
		mutate(&offered)
		dec := Evaluate(offered, []Template{{ID: "t1", PriceMap: templatePriceMap()}})
		if dec.State != model.StateDeclined {
			t.Errorf("%s: expected decline, got %s", name, dec.State)
		}
	}
}

func TestEvaluateNoTemplates(t *testing.T) {
	dec := Evaluate(offerWithin(), nil)
	if dec.State != model.StateDeclined {
		t.Fatalf("state: %s", dec.State)
	}
}

func TestEvaluateFirstFitOrder(t *testing.T) {
	// The first matching template decides even when a later one would give a
	// better price.
	cheap := templatePriceMap()
	cheap.Price.ApparentEnergyPrice = decimal.RequireFromString("0.05")
	expensive := templatePriceMap()
	expensive.Price.ApparentEnergyPrice = decimal.RequireFromString("0.40")

	offered := offerWithin()
	offered.Price.ApparentEnergyPrice = decimal.RequireFromString("0.10")

	dec := Evaluate(offered, []Template{{ID: "cheap", PriceMap: cheap}, {ID: "expensive", PriceMap: expensive}})
	if dec.State != model.StateWaiting || dec.TemplateID != "cheap" {
		t.Fatalf("first fit broken: %+v", dec)
	}

	dec = Evaluate(offered, []Template{{ID: "expensive", PriceMap: expensive}, {ID: "cheap", PriceMap: cheap}})
	if dec.State != model.StateCountered || dec.TemplateID != "expensive" {
		t.Fatalf("registry order must drive evaluation: %+v", dec)
	}
}

func TestTemplateRegistryOrder(t *testing.T) {
	r := NewTemplateRegistry(Template{ID: "a"}, Template{ID: "b"})
	r.Put(Template{ID: "c"})
	// Replacing keeps position.
	r.Put(Template{ID: "a", PriceMap: templatePriceMap()})
	list := r.List()
	if len(list) != 3 || list[0].ID != "a" || list[1].ID != "b" || list[2].ID != "c" {
		t.Fatalf("order: %+v", list)
	}
	if list[0].PriceMap.Duration != 4*time.Hour {
		t.Fatal("replace must update the template")
	}
	r.Remove("b")
	list = r.List()
	if len(list) != 2 || list[1].ID != "c" {
		t.Fatalf("after remove: %+v", list)
	}
}
