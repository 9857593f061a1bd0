package gcref

import (
	"runtime"
	"sync/atomic"
)

// spinlock is a CAS-guarded lock for the short, uncontended critical
// sections around ReferenceQueue append/scan (spec.md §7's "QueueLock (spin,
// one per ReferenceQueue)"). The CAS-loop shape follows the worker-started
// flag in catrate.Limiter.Allow, generalised from a one-shot CAS into a
// held/released lock.
type spinlock struct {
	held atomic.Bool
}

func (s *spinlock) Lock() {
	for !s.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (s *spinlock) Unlock() {
	s.held.Store(false)
}
