package facility

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	offersReceived   prometheus.Counter
	decisionsTotal   *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	verifyFailures   prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Counter, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter) {
	recv := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "facility_offers_received_total",
		Help: "Number of signed offers received from the exchange",
	})
	dec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "facility_offer_decisions_total",
		Help: "Offer evaluation outcomes by resulting state",
	}, []string{"state"})
	trans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "facility_execution_transitions_total",
		Help: "Execution state transitions driven by the scheduler",
	}, []string{"target"})
	fail := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "facility_verification_failures_total",
		Help: "Number of inbound messages rejected for bad signatures",
	})
	return recv, dec, trans, fail
}

func init() {
	offersReceived, decisionsTotal, transitionsTotal, verifyFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers facility metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(offersReceived, decisionsTotal, transitionsTotal, verifyFailures)
}

// ResetMetrics reinitializes collectors for testing purposes and registers
// them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	offersReceived, decisionsTotal, transitionsTotal, verifyFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
