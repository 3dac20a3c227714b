package metrics

import coremetrics "github.com/voltmesh/fex/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordOfferOutcome forwards the records to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordOfferOutcome(outcomes []coremetrics.OfferOutcome) error {
	for _, s := range m.Sinks {
		if err := s.RecordOfferOutcome(outcomes); err != nil {
			return err
		}
	}
	return nil
}

// RecordDecision forwards decisions to sinks that support them.
func (m *MultiSink) RecordDecision(d coremetrics.Decision) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.DecisionRecorder); ok {
			if err := rec.RecordDecision(d); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTransition forwards transitions to sinks that support them.
func (m *MultiSink) RecordTransition(t coremetrics.Transition) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.TransitionRecorder); ok {
			if err := rec.RecordTransition(t); err != nil {
				return err
			}
		}
	}
	return nil
}
