package config

import (
	"fmt"

	"github.com/voltmesh/fex/core/audit"
)

// AuditConfig defines settings for negotiation log storage and rotation.
type AuditConfig struct {
	// Enabled turns the audit trail on.
	Enabled bool `json:"enabled"`
	// Backend selects the log store type: "jsonl", "jsonl_rotating" or
	// "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in
	// megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *AuditConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "negotiation.log"
	}
}

// Validate checks mandatory fields.
func (c AuditConfig) Validate() error {
	switch c.Backend {
	case "jsonl", "jsonl_rotating", "sqlite":
	default:
		return fmt.Errorf("unknown audit backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("audit path is required")
	}
	return nil
}

// NewStore builds the configured audit store, or nil when disabled.
func (c AuditConfig) NewStore() (audit.LogStore, error) {
	if !c.Enabled {
		return nil, nil
	}
	switch c.Backend {
	case "jsonl":
		return audit.NewJSONLStore(c.Path)
	case "jsonl_rotating":
		return audit.NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	case "sqlite":
		return audit.NewSQLiteStore(c.Path)
	default:
		return nil, fmt.Errorf("unknown audit backend %s", c.Backend)
	}
}
