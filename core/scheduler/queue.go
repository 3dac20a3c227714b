package scheduler

import (
	"bytes"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/fex/core/model"
)

// Event is one scheduled state transition, keyed by (instant, offer id,
// target state) with total ordering on the instant first and the remaining
// fields as disambiguators.
type Event struct {
	At      time.Time
	OfferID uuid.UUID
	Target  model.ExecutionState
}

func (e Event) less(o Event) bool {
	if !e.At.Equal(o.At) {
		return e.At.Before(o.At)
	}
	if c := bytes.Compare(e.OfferID[:], o.OfferID[:]); c != 0 {
		return c < 0
	}
	return e.Target < o.Target
}

// eventQueue is a min-heap of events ordered by Event.less. It implements
// container/heap.Interface.
type eventQueue []Event

func (q eventQueue) Len() int           { return len(q) }
func (q eventQueue) Less(i, j int) bool { return q[i].less(q[j]) }
func (q eventQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)        { *q = append(*q, x.(Event)) }
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	*q = old[:n-1]
	return ev
}
