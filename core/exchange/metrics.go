package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	offersSent      *prometheus.CounterVec
	offerFailures   prometheus.Counter
	responseLatency prometheus.Histogram
	acceptRate      prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Counter, prometheus.Histogram, prometheus.Gauge) {
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_offers_sent_total",
		Help: "Offers dispatched to facilities by resolved outcome",
	}, []string{"outcome"})
	fail := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exchange_offer_failures_total",
		Help: "Fan-out slots that resolved with a transport or protocol error",
	})
	lat := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "exchange_offer_response_latency_seconds",
		Help:    "Latency from offer dispatch to facility response",
		Buckets: prometheus.DefBuckets,
	})
	rate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "exchange_offer_accept_rate",
		Help: "Fraction of the last fan-out that was accepted",
	})
	return sent, fail, lat, rate
}

func init() {
	offersSent, offerFailures, responseLatency, acceptRate = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers exchange metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(offersSent, offerFailures, responseLatency, acceptRate)
}

// ResetMetrics reinitializes collectors for testing purposes and registers
// them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	offersSent, offerFailures, responseLatency, acceptRate = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
