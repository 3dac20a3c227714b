package exchange

import "sync"

// Outbox stages outbound RPC dispatches until the surrounding persistence
// commits. If the commit never happens, Discard guarantees no RPC leaves the
// process; Commit releases every staged dispatch in its own goroutine.
type Outbox struct {
	mu       sync.Mutex
	staged   []func()
	released bool
}

// Stage queues fn for dispatch. If the outbox was already committed, fn runs
// immediately.
func (o *Outbox) Stage(fn func()) {
	o.mu.Lock()
	if o.released {
		o.mu.Unlock()
		go fn()
		return
	}
	o.staged = append(o.staged, fn)
	o.mu.Unlock()
}

// Commit marks the outbox durable and releases all staged dispatches.
func (o *Outbox) Commit() {
	o.mu.Lock()
	staged := o.staged
	o.staged = nil
	o.released = true
	o.mu.Unlock()
	for _, fn := range staged {
		go fn()
	}
}

// Discard drops all staged dispatches without running them.
func (o *Outbox) Discard() {
	o.mu.Lock()
	o.staged = nil
	o.released = false
	o.mu.Unlock()
}
