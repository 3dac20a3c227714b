package facility

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltmesh/fex/core/model"
	"github.com/voltmesh/fex/core/scheduler"
)

// TemplateDef is the configuration form of a price map template.
type TemplateDef struct {
	ID                  string `json:"id"`
	RealPowerW          int64  `json:"real_power_w"`
	ReactivePowerVAR    int64  `json:"reactive_power_var"`
	DurationSeconds     int    `json:"duration_seconds"`
	ResponseMinSeconds  int    `json:"response_min_seconds"`
	ResponseMaxSeconds  int    `json:"response_max_seconds"`
	Currency            string `json:"currency"`
	RealEnergyPrice     string `json:"real_energy_price"`
	ApparentEnergyPrice string `json:"apparent_energy_price"`
}

// ToTemplate converts the definition into a Template.
func (d TemplateDef) ToTemplate() (Template, error) {
	if d.ID == "" {
		return Template{}, fmt.Errorf("template id is required")
	}
	real, err := decimal.NewFromString(d.RealEnergyPrice)
	if err != nil {
		return Template{}, fmt.Errorf("template %s: real_energy_price: %w", d.ID, err)
	}
	apparent, err := decimal.NewFromString(d.ApparentEnergyPrice)
	if err != nil {
		return Template{}, fmt.Errorf("template %s: apparent_energy_price: %w", d.ID, err)
	}
	return Template{
		ID: d.ID,
		PriceMap: model.PriceMap{
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
		},
	}, nil
}

// Config defines a facility node.
type Config struct {
	Enabled bool   `json:"enabled"`
	UID     string `json:"uid"`
	// ExchangeUID is the only sender this facility accepts offers from.
	ExchangeUID string `json:"exchange_uid"`
	// KeyFile is the facility's private key in PEM form.
	KeyFile string `json:"key_file"`
	// ExchangeKeyFile is the exchange's public key in PEM form.
	ExchangeKeyFile string `json:"exchange_key_file"`
	// Templates are evaluated in order; order is acceptance policy.
	Templates []TemplateDef `json:"templates"`

	Scheduler         scheduler.Config `json:"scheduler"`
	RPCTimeoutSeconds int              `json:"rpc_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.RPCTimeoutSeconds == 0 {
		c.RPCTimeoutSeconds = 10
	}
	c.Scheduler.SetDefaults()
}

// Validate checks mandatory fields when the facility role is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.UID == "" {
		return fmt.Errorf("facility uid is required")
	}
	if c.ExchangeUID == "" {
		return fmt.Errorf("exchange_uid is required")
	}
	for _, d := range c.Templates {
		if _, err := d.ToTemplate(); err != nil {
			return err
		}
	}
	return c.Scheduler.Validate()
}
