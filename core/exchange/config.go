package exchange

import (
	"fmt"

	"github.com/voltmesh/fex/core/scheduler"
)

// Config defines an exchange node.
type Config struct {
	Enabled bool   `json:"enabled"`
	UID     string `json:"uid"`
	// KeyFile is the exchange's private key in PEM form.
	KeyFile string `json:"key_file"`
	// Facilities lists the facility UIDs this exchange may address.
	Facilities []string `json:"facilities"`

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

// Validate checks mandatory fields when the exchange role is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.UID == "" {
		return fmt.Errorf("exchange uid is required")
	}
	return c.Scheduler.Validate()
}
