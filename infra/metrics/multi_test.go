package metrics

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	coremetrics "github.com/voltmesh/fex/core/metrics"
	"github.com/voltmesh/fex/core/model"
)

// recordingSink captures everything for assertions.
type recordingSink struct {
	outcomes    []coremetrics.OfferOutcome
	decisions   []coremetrics.Decision
	transitions []coremetrics.Transition
	err         error
}

func (s *recordingSink) RecordOfferOutcome(o []coremetrics.OfferOutcome) error {
	s.outcomes = append(s.outcomes, o...)
	return s.err
}

func (s *recordingSink) RecordDecision(d coremetrics.Decision) error {
	s.decisions = append(s.decisions, d)
	return s.err
}

func (s *recordingSink) RecordTransition(t coremetrics.Transition) error {
	s.transitions = append(s.transitions, t)
	return s.err
}

// outcomeOnlySink implements just the base MetricsSink contract.
type outcomeOnlySink struct {
	outcomes int
}

func (s *outcomeOnlySink) RecordOfferOutcome(o []coremetrics.OfferOutcome) error {
	s.outcomes += len(o)
	return nil
}

func TestMultiSinkForwardsToAll(t *testing.T) {
	a := &recordingSink{}
	b := &outcomeOnlySink{}
	m := NewMultiSink(a, b)

	if err := m.RecordOfferOutcome([]coremetrics.OfferOutcome{
		{OfferID: uuid.New(), FacilityUID: "fac1", State: model.StateWaiting},
	}); err != nil {
		t.Fatal(err)
	}
	if len(a.outcomes) != 1 || b.outcomes != 1 {
		t.Fatalf("outcomes: %d %d", len(a.outcomes), b.outcomes)
	}

	// Decisions and transitions only reach sinks implementing the optional
	// recorders.
	if err := m.RecordDecision(coremetrics.Decision{State: model.StateDeclined}); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordTransition(coremetrics.Transition{From: model.StateWaiting, To: model.StateExecuting}); err != nil {
		t.Fatal(err)
	}
	if len(a.decisions) != 1 || len(a.transitions) != 1 {
		t.Fatalf("decisions %d transitions %d", len(a.decisions), len(a.transitions))
	}
}

func TestMultiSinkPropagatesError(t *testing.T) {
	boom := errors.New("sink down")
	m := NewMultiSink(&recordingSink{err: boom}, &recordingSink{})
	if err := m.RecordOfferOutcome([]coremetrics.OfferOutcome{{}}); !errors.Is(err, boom) {
		t.Fatalf("err: %v", err)
	}
}
