// Package config loads the node configuration from a JSON or YAML file with
// optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/voltmesh/fex/core/exchange"
	"github.com/voltmesh/fex/core/facility"
	"github.com/voltmesh/fex/core/metrics"
	"github.com/voltmesh/fex/infra/mqtt"
)

// Config is the root configuration of a node. A single process may run the
// exchange role, the facility role or both.
type Config struct {
	Exchange exchange.Config `json:"exchange"`
	Facility facility.Config `json:"facility"`
	MQTT     mqtt.Config     `json:"mqtt"`
	Metrics  metrics.Config  `json:"metrics"`
	Store    StoreConfig     `json:"store"`
	Audit    AuditConfig     `json:"audit"`
	API      APIConfig       `json:"api"`
}

// Load reads the configuration file at path. Environment variables prefixed
// with FEX_ override file values, with "__" separating nesting levels.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("FEX_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fex_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Exchange.SetDefaults()
	cfg.Facility.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.Audit.SetDefaults()
	if err := cfg.Exchange.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Facility.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Exchange.Enabled && !cfg.Facility.Enabled {
		return nil, fmt.Errorf("at least one of exchange or facility must be enabled")
	}
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Audit.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
