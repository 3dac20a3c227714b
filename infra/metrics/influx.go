package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/voltmesh/fex/core/metrics"
	"github.com/voltmesh/fex/infra/logger"
)

// InfluxSink writes negotiation events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB
// endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// RecordOfferOutcome writes the resolved outcomes as line protocol events.
func (s *InfluxSink) RecordOfferOutcome(outcomes []coremetrics.OfferOutcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, o := range outcomes {
		p := write.NewPointWithMeasurement("offer_outcome").
			AddTag("offering_id", o.OfferingID.String()).
			AddTag("offer_id", o.OfferID.String()).
			AddTag("facility_uid", o.FacilityUID).
			AddTag("state", o.State.String()).
			AddTag("countered", strconv.FormatBool(o.Countered)).
			AddTag("component", "exchange").
			AddField("apparent_power_va", round3(o.ApparentPowerVA)).
			AddField("duration_seconds", round3(o.DurationSeconds)).
			AddField("latency_ms", round3(o.Latency.Seconds()*1000)).
			SetTime(o.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordDecision writes a facility-side evaluation decision.
func (s *InfluxSink) RecordDecision(d coremetrics.Decision) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("offer_decision").
		AddTag("offer_id", d.OfferID.String()).
		AddTag("exchange_uid", d.ExchangeUID).
		AddTag("state", d.State.String()).
		AddTag("component", "facility")
	if d.TemplateID != "" {
		p = p.AddTag("template_id", d.TemplateID)
	}
	p = p.AddField("count", 1).SetTime(d.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTransition writes an execution state transition.
func (s *InfluxSink) RecordTransition(t coremetrics.Transition) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("execution_transition").
		AddTag("offer_id", t.OfferID.String()).
		AddTag("from", t.From.String()).
		AddTag("to", t.To.String()).
		AddField("success", t.Success).
		SetTime(t.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
