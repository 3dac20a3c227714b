package scheduler

import "fmt"

// Config defines scheduler timing parameters.
type Config struct {
	// LookaheadMS is the padding added to the drain cutoff so that events
	// landing just after a wake-up are absorbed in the same batch.
	LookaheadMS int `json:"lookahead_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.LookaheadMS == 0 {
		c.LookaheadMS = 100
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.LookaheadMS < 0 {
		return fmt.Errorf("lookahead_ms must not be negative")
	}
	return nil
}
