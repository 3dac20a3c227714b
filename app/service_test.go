package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltmesh/fex/config"
	"github.com/voltmesh/fex/core/auth"
	"github.com/voltmesh/fex/core/exchange"
	"github.com/voltmesh/fex/core/facility"
	"github.com/voltmesh/fex/core/model"
)

func writeKeyFile(t *testing.T, dir, name string) string {
	t.Helper()
	kp, err := auth.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := auth.SaveKeypair(kp, path); err != nil {
		t.Fatal(err)
	}
	return path
}

// inProcConfig disables MQTT and runs both roles in one binary.
func inProcConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Exchange: exchange.Config{
			Enabled:           true,
			UID:               "exchange-1",
			KeyFile:           writeKeyFile(t, dir, "exchange.pem"),
			Facilities:        []string{"facility-1"},
			RPCTimeoutSeconds: 5,
		},
		Facility: facility.Config{
			Enabled:           true,
			UID:               "facility-1",
			ExchangeUID:       "exchange-1",
			KeyFile:           writeKeyFile(t, dir, "facility.pem"),
			RPCTimeoutSeconds: 5,
			Templates: []facility.TemplateDef{{
				ID:                  "base",
				RealPowerW:          100_000,
				ReactivePowerVAR:    20_000,
				DurationSeconds:     4 * 3600,
				ResponseMinSeconds:  30,
				ResponseMaxSeconds:  600,
				Currency:            "EUR",
				RealEnergyPrice:     "0.12",
				ApparentEnergyPrice: "0.15",
			}},
		},
	}
}

func TestNewWiresRolesInProcessWithoutBroker(t *testing.T) {
	svc, err := New(inProcConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()
	if svc.Exchange == nil || svc.Facility == nil {
		t.Fatalf("roles not built: %+v", svc)
	}

	// A full negotiation must work over the in-process wiring.
	pm := model.PriceMap{
		Power:        model.PowerComponents{RealPower: 50_000, ReactivePower: 10_000},
		Duration:     2 * time.Hour,
		ResponseTime: model.DurationRange{Min: time.Minute, Max: 15 * time.Minute},
		Price: model.PriceComponents{
			Currency:            "EUR",
			RealEnergyPrice:     decimal.RequireFromString("0.12"),
			ApparentEnergyPrice: decimal.RequireFromString("0.20"),
		},
	}
	off, err := svc.Exchange.CreateOffering(context.Background(), pm, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	f, err := svc.Exchange.MakeOfferToFacilities(context.Background(), off.ID, []string{"facility-1"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	outs, err := f.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if outs[0].Err != nil {
		t.Fatal(outs[0].Err)
	}
	if !outs[0].Offer.Accepted || outs[0].Offer.State != model.StateWaiting {
		t.Fatalf("offer: %+v", outs[0].Offer)
	}
}

func TestNewRejectsSingleRoleWithoutBroker(t *testing.T) {
	cfg := inProcConfig(t)
	cfg.Facility.Enabled = false
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for single role without a broker")
	}
}
