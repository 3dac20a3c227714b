package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/fex/core/model"
)

// Outcome is one resolved facility slot of a fan-out. Exactly one of Offer
// or Err is meaningful: a slot that failed carries its own error without
// affecting its siblings.
type Outcome struct {
	FacilityUID string
	Offer       model.Offer
	Err         error
	Latency     time.Duration
}

// Fanout aggregates the per-facility outcomes of one offering dispatch. It
// resolves only when every slot has resolved, success or error.
type Fanout struct {
	OfferingID uuid.UUID

	mu    sync.Mutex
	slots []Outcome
	wg    sync.WaitGroup
	done  chan struct{}
	once  sync.Once
}

func newFanout(offeringID uuid.UUID, n int) *Fanout {
	f := &Fanout{
		OfferingID: offeringID,
		slots:      make([]Outcome, n),
		done:       make(chan struct{}),
	}
	f.wg.Add(n)
	go func() {
		f.wg.Wait()
		f.once.Do(func() { close(f.done) })
	}()
	return f
}

// resolve fills slot i. Each slot resolves exactly once.
func (f *Fanout) resolve(i int, out Outcome) {
	f.mu.Lock()
	f.slots[i] = out
	f.mu.Unlock()
	f.wg.Done()
}

// Done returns a channel closed when every slot has resolved.
func (f *Fanout) Done() <-chan struct{} { return f.done }

// Wait blocks until all slots resolve or ctx is cancelled. Cancelling the
// wait does not cancel in-flight per-facility calls.
func (f *Fanout) Wait(ctx context.Context) ([]Outcome, error) {
	select {
	case <-f.done:
		return f.Outcomes(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Outcomes returns a snapshot of the slots in facility order.
func (f *Fanout) Outcomes() []Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Outcome, len(f.slots))
	copy(out, f.slots)
	return out
}
