package vmkit

import (
	"sync"
	"time"
)

// RecursiveMonitor backs VMObject.wait/notify/notifyAll (spec.md §5): a
// per-object lazily-allocated lock with recursive acquisition, matching the
// classical Java/CLI monitor semantics the substrate must provide to its
// front-ends. Wait releases every recursion level while parked and
// re-acquires them all on wake, exactly as spec.md describes.
type RecursiveMonitor struct {
	mu         sync.Mutex
	cond       *sync.Cond
	owner      *Thread
	depth      int
	generation uint64 // bumped by Notify/NotifyAll, so Wait can tell a real notification from the lock merely changing hands
}

// NewRecursiveMonitor constructs an unlocked monitor.
func NewRecursiveMonitor() *RecursiveMonitor {
	m := &RecursiveMonitor{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Lock acquires the monitor, recursively if self already owns it.
func (m *RecursiveMonitor) Lock(self *Thread) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.owner != nil && m.owner != self {
		m.cond.Wait()
	}
	m.owner = self
	m.depth++
}

// Unlock releases one recursion level. Returns IllegalMonitorStateError if
// self does not currently hold the monitor.
func (m *RecursiveMonitor) Unlock(self *Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != self {
		return &IllegalMonitorStateError{Op: "unlock"}
	}
	m.depth--
	if m.depth == 0 {
		m.owner = nil
		m.cond.Broadcast()
	}
	return nil
}

// Wait releases every recursion level self holds, parks until Notify,
// NotifyAll, an interrupt, or (if timeout > 0) the deadline, then
// re-acquires all recursion levels before returning. Returns
// InterruptedError if the thread was interrupted while parked, and
// IllegalMonitorStateError if self does not hold the monitor.
func (m *RecursiveMonitor) Wait(self *Thread, timeout time.Duration) error {
	m.mu.Lock()
	if m.owner != self {
		m.mu.Unlock()
		return &IllegalMonitorStateError{Op: "wait"}
	}
	savedDepth := m.depth
	savedGeneration := m.generation
	m.depth = 0
	m.owner = nil
	m.cond.Broadcast() // let another waiter in while self parks

	self.interruptMu.Lock()
	self.waitCond = m.cond
	self.interruptMu.Unlock()

	woken := func() bool { return self.interruptedAndPeek() || m.generation != savedGeneration }

	if timeout > 0 {
		m.waitWithTimeout(timeout, woken)
	} else {
		for !woken() {
			m.cond.Wait()
		}
	}

	self.interruptMu.Lock()
	self.waitCond = nil
	self.interruptMu.Unlock()

	for m.owner != nil && m.owner != self {
		m.cond.Wait()
	}
	m.owner = self
	m.depth = savedDepth
	m.mu.Unlock()

	if self.interruptedAndClear() {
		return &InterruptedError{Thread: self}
	}
	return nil
}

// waitWithTimeout parks on m.cond until woken (per the woken predicate) or
// d elapses. Must be called with m.mu held; m.mu is released while waiting,
// as with a plain sync.Cond.Wait.
func (m *RecursiveMonitor) waitWithTimeout(d time.Duration, woken func() bool) {
	expired := false
	timer := time.AfterFunc(d, func() {
		m.mu.Lock()
		expired = true
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer timer.Stop()

	for !expired && !woken() {
		m.cond.Wait()
	}
}

// Notify wakes one waiter, if any. Returns IllegalMonitorStateError if self
// does not hold the monitor.
func (m *RecursiveMonitor) Notify(self *Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != self {
		return &IllegalMonitorStateError{Op: "notify"}
	}
	m.generation++
	m.cond.Signal()
	return nil
}

// NotifyAll wakes every waiter. Returns IllegalMonitorStateError if self
// does not hold the monitor.
func (m *RecursiveMonitor) NotifyAll(self *Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != self {
		return &IllegalMonitorStateError{Op: "notifyAll"}
	}
	m.generation++
	m.cond.Broadcast()
	return nil
}
