package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/voltmesh/fex/core/logger"
)

// ExecutionService performs the state transition an event asks for:
// WAITING to EXECUTING at the start instant, EXECUTING to COMPLETED or
// ABORTED at the end instant. Implementations publish their own state-change
// notifications.
type ExecutionService interface {
	Transition(ctx context.Context, ev Event) error
}

// Scheduler owns a time-ordered pending set of events and one background
// worker that retires them as their deadlines pass. The pending set is the
// only structure shared between callers and the worker.
type Scheduler struct {
	mu    sync.Mutex
	queue eventQueue

	wake chan struct{}
	done chan struct{}
	once sync.Once

	exec      ExecutionService
	log       logger.Logger
	lookahead time.Duration
}

// New creates a scheduler. Start must be called before events fire.
func New(exec ExecutionService, cfg Config, log logger.Logger) *Scheduler {
	cfg.SetDefaults()
	return &Scheduler{
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		exec:      exec,
		log:       log,
		lookahead: time.Duration(cfg.LookaheadMS) * time.Millisecond,
	}
}

// Start launches the worker goroutine.
func (s *Scheduler) Start() {
	go s.run()
}

// Close stops the worker. Pending events are discarded.
func (s *Scheduler) Close() {
	s.once.Do(func() { close(s.done) })
}

// Schedule inserts an event. The worker is woken only when the event becomes
// the new earliest deadline; later events are picked up on the next natural
// wake. Events scheduled after Close can never fire and are dropped.
func (s *Scheduler) Schedule(ev Event) {
	select {
	case <-s.done:
		return
	default:
	}
	s.mu.Lock()
	heap.Push(&s.queue, ev)
	isMin := s.queue[0] == ev
	s.mu.Unlock()
	if isMin {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of events not yet drained.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) run() {
	for {
		s.mu.Lock()
		var wait time.Duration
		hasNext := len(s.queue) > 0
		if hasNext {
			wait = time.Until(s.queue[0].At)
		}
		s.mu.Unlock()

		if !hasNext {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-s.wake:
				timer.Stop()
				continue
			case <-s.done:
				timer.Stop()
				return
			}
		}
		for _, ev := range s.drain(time.Now().Add(s.lookahead)) {
			if err := s.exec.Transition(context.Background(), ev); err != nil {
				// A single event's failure must not kill the worker.
				s.log.Errorf("transition %s -> %s failed: %v", ev.OfferID, ev.Target, err)
			}
		}
	}
}

// drain removes and returns every event due at or before cutoff, in deadline
// order, holding the lock only for the snapshot.
func (s *Scheduler) drain(cutoff time.Time) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Event
	for len(s.queue) > 0 && !s.queue[0].At.After(cutoff) {
		due = append(due, heap.Pop(&s.queue).(Event))
	}
	return due
}
