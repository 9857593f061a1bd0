package finalizer

import (
	"runtime"
	"sync/atomic"

	"github.com/vmkit-go/vmkit/collector"
)

// spinlock mirrors gcref's CAS-guarded lock (see gcref/spinlock.go); spec.md
// §7 calls for a single FinalizationQueueLock guarding both finalization
// arrays, so this is duplicated rather than shared, to keep finalizer free
// of a gcref import.
type spinlock struct{ held atomic.Bool }

func (s *spinlock) Lock() {
	for !s.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (s *spinlock) Unlock() { s.held.Store(false) }

// Lock and Unlock expose q's internal spinlock (FinalizationQueueLock) to
// the collection driver, which holds it across the whole stop-the-world
// window so Add blocks rather than racing with scan. scan assumes this
// lock is already held.
func (q *FinalizationQueue) Lock()   { q.mu.Lock() }
func (q *FinalizationQueue) Unlock() { q.mu.Unlock() }

type candidate struct {
	vm  VM
	obj any
}

// FinalizationQueue holds every registered finalization candidate, and the
// subset that has graduated to ready-to-run after a collection determined
// it unreachable (spec.md §4.3). Both arrays share a single spinlock.
type FinalizationQueue struct {
	maxLen int

	mu        spinlock
	candidate []candidate
	ready     []candidate
}

// NewFinalizationQueue constructs an empty queue. maxLen bounds growth; 0
// means unbounded (besides the process's actual memory).
func NewFinalizationQueue(initCap, maxLen int) *FinalizationQueue {
	if maxLen <= 0 {
		maxLen = int(^uint(0) >> 1)
	}
	return &FinalizationQueue{
		maxLen:    maxLen,
		candidate: make([]candidate, 0, initCap),
	}
}

// Add registers obj, owned by vm, as a finalization candidate.
func (q *FinalizationQueue) Add(vm VM, obj any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.candidate)+len(q.ready) >= q.maxLen {
		return ErrQueueOverflow
	}
	q.candidate = append(q.candidate, candidate{vm: vm, obj: obj})
	return nil
}

// scan partitions the candidate array per spec.md §4.3: objects that
// survived tracing stay candidates; objects that did not are resurrected
// via Collector.RetainForFinalize and moved to the ready-to-run array. The
// caller must already hold q's lock (see Lock) and every mutator must be
// parked at a safepoint.
func (q *FinalizationQueue) scan(c Collector, closure collector.Closure) {
	kept := q.candidate[:0]
	for _, cand := range q.candidate {
		if c.IsLive(cand.obj, closure) {
			kept = append(kept, cand)
			continue
		}
		c.RetainForFinalize(cand.obj, closure)
		forwarded := c.GetForwardedFinalizable(cand.obj, closure)
		q.ready = append(q.ready, candidate{vm: cand.vm, obj: forwarded})
	}
	q.candidate = kept
}

// drainReady removes and returns every ready-to-run candidate, for the
// worker to finalize off the collection thread.
func (q *FinalizationQueue) drainReady() []candidate {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) == 0 {
		return nil
	}
	ready := q.ready
	q.ready = nil
	return ready
}
