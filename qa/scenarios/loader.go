// Package scenarios runs YAML-defined negotiation scenarios against the
// template evaluator.
package scenarios

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shopspring/decimal"

	"github.com/voltmesh/fex/core/facility"
	"github.com/voltmesh/fex/core/model"
)

// PriceMapDef is the YAML form of a price map.
type PriceMapDef struct {
	RealPowerW          int64  `yaml:"real_power_w"`
	ReactivePowerVAR    int64  `yaml:"reactive_power_var"`
	DurationSeconds     int    `yaml:"duration_seconds"`
	ResponseMinSeconds  int    `yaml:"response_min_seconds"`
	ResponseMaxSeconds  int    `yaml:"response_max_seconds"`
	Currency            string `yaml:"currency"`
	RealEnergyPrice     string `yaml:"real_energy_price"`
	ApparentEnergyPrice string `yaml:"apparent_energy_price"`
}

// ToModel converts the definition into a PriceMap.
func (d PriceMapDef) ToModel() (model.PriceMap, error) {
	real, err := decimal.NewFromString(d.RealEnergyPrice)
	if err != nil {
		return model.PriceMap{}, err
	}
	apparent, err := decimal.NewFromString(d.ApparentEnergyPrice)
	if err != nil {
		return model.PriceMap{}, err
	}
	return model.PriceMap{
		Power: model.PowerComponents{
			RealPower:     d.RealPowerW,
			ReactivePower: d.ReactivePowerVAR,
		},
		Duration: time.Duration(d.DurationSeconds) * time.Second,
		ResponseTime: model.DurationRange{
			Min: time.Duration(d.ResponseMinSeconds) * time.Second,
			Max: time.Duration(d.ResponseMaxSeconds) * time.Second,
		},
		Price: model.PriceComponents{
			Currency:            d.Currency,
			RealEnergyPrice:     real,
			ApparentEnergyPrice: apparent,
		},
	}, nil
}

// TemplateDef is the YAML form of a facility template.
type TemplateDef struct {
	ID       string      `yaml:"id"`
	PriceMap PriceMapDef `yaml:"price_map"`
}

// ToModel converts the definition into a facility template.
func (d TemplateDef) ToModel() (facility.Template, error) {
	pm, err := d.PriceMap.ToModel()
	if err != nil {
		return facility.Template{}, err
	}
	return facility.Template{ID: d.ID, PriceMap: pm}, nil
}

// OfferDef is one incoming offer with its expected decision.
type OfferDef struct {
	Name     string      `yaml:"name"`
	PriceMap PriceMapDef `yaml:"price_map"`
	Expected Expected    `yaml:"expected"`
}

// Expected describes the decision the evaluator must reach.
type Expected struct {
	State      string `yaml:"state"`
	TemplateID string `yaml:"template_id,omitempty"`
}

// Scenario bundles a template set with a series of offers.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Templates   []TemplateDef `yaml:"templates"`
	Offers      []OfferDef    `yaml:"offers"`
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
