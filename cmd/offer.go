package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/voltmesh/fex/app"
	"github.com/voltmesh/fex/config"
	"github.com/voltmesh/fex/core/model"
	"github.com/voltmesh/fex/infra/logger"
)

var (
	offerRealPowerW       int64
	offerReactivePowerVAR int64
	offerDurationSec      int
	offerResponseMinSec   int
	offerResponseMaxSec   int
	offerCurrency         string
	offerRealPrice        string
	offerApparentPrice    string
	offerStartInSec       int
	offerFacilities       []string
)

var offerCmd = &cobra.Command{
	Use:   "offer",
	Short: "Create an offering and fan it out to facilities",
	RunE:  makeOffer,
}

func init() {
	offerCmd.Flags().Int64Var(&offerRealPowerW, "real-power-w", 50000, "real power in watts, negative for consumption")
	offerCmd.Flags().Int64Var(&offerReactivePowerVAR, "reactive-power-var", 0, "reactive power in volt-amperes reactive")
	offerCmd.Flags().IntVar(&offerDurationSec, "duration", 3600, "commitment duration in seconds")
	offerCmd.Flags().IntVar(&offerResponseMinSec, "response-min", 10, "minimum response time in seconds")
	offerCmd.Flags().IntVar(&offerResponseMaxSec, "response-max", 300, "maximum response time in seconds")
	offerCmd.Flags().StringVar(&offerCurrency, "currency", "EUR", "price currency code")
	offerCmd.Flags().StringVar(&offerRealPrice, "real-price", "0.15", "real energy price per kWh")
	offerCmd.Flags().StringVar(&offerApparentPrice, "apparent-price", "0.18", "apparent energy price per kVAh")
	offerCmd.Flags().IntVar(&offerStartInSec, "start-in", 900, "seconds until execution starts")
	offerCmd.Flags().StringSliceVar(&offerFacilities, "facilities", nil, "facility UIDs to address, defaults to the configured list")
	rootCmd.AddCommand(offerCmd)
}

func makeOffer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Exchange.Enabled {
		return fmt.Errorf("offer command requires the exchange role")
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	logg := logger.New("offer-command")
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	realPrice, err := decimal.NewFromString(offerRealPrice)
	if err != nil {
		return fmt.Errorf("real-price: %w", err)
	}
	apparentPrice, err := decimal.NewFromString(offerApparentPrice)
	if err != nil {
		return fmt.Errorf("apparent-price: %w", err)
	}
	pm := model.PriceMap{
		Power: model.PowerComponents{
			RealPower:     offerRealPowerW,
			ReactivePower: offerReactivePowerVAR,
		},
		Duration: time.Duration(offerDurationSec) * time.Second,
		ResponseTime: model.DurationRange{
			Min: time.Duration(offerResponseMinSec) * time.Second,
			Max: time.Duration(offerResponseMaxSec) * time.Second,
		},
		Price: model.PriceComponents{
			Currency:            offerCurrency,
			RealEnergyPrice:     realPrice,
			ApparentEnergyPrice: apparentPrice,
		},
	}

	facilities := offerFacilities
	if len(facilities) == 0 {
		facilities = cfg.Exchange.Facilities
	}
	if len(facilities) == 0 {
		return fmt.Errorf("no facilities to address")
	}

	start := time.Now().Add(time.Duration(offerStartInSec) * time.Second)
	offering, err := svc.Exchange.CreateOffering(ctx, pm, start)
	if err != nil {
		return fmt.Errorf("create offering: %w", err)
	}
	fan, err := svc.Exchange.MakeOfferToFacilities(ctx, offering.ID, facilities)
	if err != nil {
		return fmt.Errorf("fan out: %w", err)
	}
	outcomes, err := fan.Wait(ctx)
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		if o.Err != nil {
			logg.Errorf("facility %s: %v", o.FacilityUID, o.Err)
			continue
		}
		logg.Infof("facility %s: %s (countered=%t, %s)", o.FacilityUID, o.Offer.State, o.Offer.CounterOffer != nil, o.Latency)
	}
	return nil
}
