package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const yamlConfig = `
exchange:
  enabled: true
  uid: exchange-1
  key_file: exchange.pem
  facilities:
    - facility-a
    - facility-b
facility:
  enabled: false
mqtt:
  broker: tcp://localhost:1883
  client_id: exchange-1
store:
  backend: sqlite
  path: /var/lib/fex/fex.db
audit:
  enabled: true
  backend: jsonl_rotating
  path: /var/log/fex/negotiation.log
  max_size_mb: 10
  max_backups: 3
api:
  enabled: true
  port: 8088
  token: secret
`

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", yamlConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Exchange.Enabled || cfg.Exchange.UID != "exchange-1" {
		t.Fatalf("exchange: %+v", cfg.Exchange)
	}
	if len(cfg.Exchange.Facilities) != 2 || cfg.Exchange.Facilities[1] != "facility-b" {
		t.Fatalf("facilities: %v", cfg.Exchange.Facilities)
	}
	// Defaults apply under explicit values.
	if cfg.Exchange.RPCTimeoutSeconds != 10 {
		t.Fatalf("rpc timeout: %d", cfg.Exchange.RPCTimeoutSeconds)
	}
	if cfg.MQTT.Broker != "tcp://localhost:1883" {
		t.Fatalf("broker: %s", cfg.MQTT.Broker)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "/var/lib/fex/fex.db" {
		t.Fatalf("store: %+v", cfg.Store)
	}
	if cfg.Audit.Backend != "jsonl_rotating" || cfg.Audit.MaxSizeMB != 10 {
		t.Fatalf("audit: %+v", cfg.Audit)
	}
	if !cfg.API.Enabled || cfg.API.Port != 8088 || cfg.API.Token != "secret" {
		t.Fatalf("api: %+v", cfg.API)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "facility": {
    "enabled": true,
    "uid": "facility-1",
    "exchange_uid": "exchange-1",
    "templates": [
      {
        "id": "base",
        "real_power_w": 100000,
        "reactive_power_var": 20000,
        "duration_seconds": 14400,
        "response_min_seconds": 30,
        "response_max_seconds": 600,
        "currency": "EUR",
        "real_energy_price": "0.12",
        "apparent_energy_price": "0.15"
      }
    ]
  }
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Facility.Enabled || cfg.Facility.ExchangeUID != "exchange-1" {
		t.Fatalf("facility: %+v", cfg.Facility)
	}
	if len(cfg.Facility.Templates) != 1 || cfg.Facility.Templates[0].ID != "base" {
		t.Fatalf("templates: %+v", cfg.Facility.Templates)
	}
	if cfg.Store.Backend != "memory" {
		t.Fatalf("store default: %s", cfg.Store.Backend)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FEX_EXCHANGE__UID", "override-1")
	path := writeConfig(t, "config.yaml", yamlConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Exchange.UID != "override-1" {
		t.Fatalf("uid: %s", cfg.Exchange.UID)
	}
}

func TestLoadRejectsNoRole(t *testing.T) {
	path := writeConfig(t, "config.yaml", "mqtt:\n  broker: tcp://localhost:1883\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := writeConfig(t, "config.toml", "x = 1")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadRejectsBadTemplate(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
facility:
  enabled: true
  uid: facility-1
  exchange_uid: exchange-1
  templates:
    - id: broken
      real_energy_price: not-a-number
      apparent_energy_price: "0.15"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error")
	}
}

func TestStoreConfigValidate(t *testing.T) {
	bad := StoreConfig{Backend: "postgres"}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error")
	}
	var def StoreConfig
	def.SetDefaults()
	if def.Backend != "memory" {
		t.Fatalf("backend: %s", def.Backend)
	}
}

func TestAuditConfigNewStore(t *testing.T) {
	disabled := AuditConfig{}
	s, err := disabled.NewStore()
	if err != nil || s != nil {
		t.Fatalf("disabled: %v %v", s, err)
	}

	dir := t.TempDir()
	enabled := AuditConfig{Enabled: true, Backend: "jsonl", Path: filepath.Join(dir, "audit.jsonl")}
	s, err = enabled.NewStore()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s == nil {
		t.Fatal("nil store")
	}
}
