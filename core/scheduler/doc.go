// Package scheduler drives accepted commitments to execution. A single
// long-lived worker sleeps until the earliest pending deadline, wakes when an
// earlier event is inserted, and drains due events in one locked snapshot
// before invoking the execution service outside the lock.
package scheduler
