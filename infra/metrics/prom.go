package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/voltmesh/fex/core/metrics"
)

// PromSink records negotiation outcomes in Prometheus metrics.
type PromSink struct {
	outcomes    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	decisions   *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

// NewPromSink registers negotiation metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "negotiation_outcomes_total",
		Help: "Total number of resolved offer outcomes",
	}, []string{"facility_uid", "state", "countered"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "negotiation_latency_seconds",
		Help:    "Time between offer dispatch and facility response",
		Buckets: prometheus.DefBuckets,
	}, []string{"facility_uid", "state"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "negotiation_decisions_total",
		Help: "Facility-side evaluation decisions by state and template",
	}, []string{"state", "template_id"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "negotiation_transitions_total",
		Help: "Execution state transitions",
	}, []string{"from", "to"})

	if err := registerCounterVec(reg, &outcomes); err != nil {
		return nil, err
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := registerCounterVec(reg, &decisions); err != nil {
		return nil, err
	}
	if err := registerCounterVec(reg, &transitions); err != nil {
		return nil, err
	}

	return &PromSink{outcomes: outcomes, latency: latency, decisions: decisions, transitions: transitions}, nil
}

func registerCounterVec(reg prometheus.Registerer, cv **prometheus.CounterVec) error {
	if err := reg.Register(*cv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*cv = are.ExistingCollector.(*prometheus.CounterVec)
			return nil
		}
		return err
	}
	return nil
}

// RecordOfferOutcome increments the counter for each resolved outcome.
func (s *PromSink) RecordOfferOutcome(outcomes []coremetrics.OfferOutcome) error {
	for _, o := range outcomes {
		s.outcomes.WithLabelValues(o.FacilityUID, o.State.String(), strconv.FormatBool(o.Countered)).Inc()
		s.latency.WithLabelValues(o.FacilityUID, o.State.String()).Observe(o.Latency.Seconds())
	}
	return nil
}

// RecordDecision increments the decision counter.
func (s *PromSink) RecordDecision(d coremetrics.Decision) error {
	s.decisions.WithLabelValues(d.State.String(), d.TemplateID).Inc()
	return nil
}

// RecordTransition increments the transition counter.
func (s *PromSink) RecordTransition(t coremetrics.Transition) error {
	s.transitions.WithLabelValues(t.From.String(), t.To.String()).Inc()
	return nil
}

// StartPromServer exposes /metrics on the given port and returns the server
// for shutdown. Startup errors surface on the returned channel.
func StartPromServer(port string) (*http.Server, <-chan error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	return srv, errCh
}

// StopPromServer shuts the metrics server down with a bounded grace period.
func StopPromServer(srv *http.Server) error {
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
