package gcref

import "github.com/vmkit-go/vmkit/collector"

// entry pairs a reference object with the VM that owns it; a ReferenceQueue
// is shared across every VM registered with a single VMKit instance, so each
// slot must remember who to call back.
type entry struct {
	vm  VM
	ref any
}

// ReferenceQueue is a growable, spinlock-guarded collection of live
// reference objects of one Semantics, scanned once per collection (spec.md
// §4.2, §7). It mirrors mvm::ReferenceQueue upstream: a doubling array
// rather than a linked list, to keep scan cache-friendly.
type ReferenceQueue struct {
	semantics Semantics
	maxLen    int

	mu      spinlock
	entries []entry
}

// NewReferenceQueue constructs an empty queue of the given semantics.
// initCap is the starting capacity (INITIAL_QUEUE_SIZE upstream, 256 by
// default); maxLen bounds how large the queue may grow before AddReference
// starts returning ErrQueueOverflow - 0 means no bound beyond int's range.
func NewReferenceQueue(semantics Semantics, initCap, maxLen int) *ReferenceQueue {
	if maxLen <= 0 {
		maxLen = int(^uint(0) >> 1)
	}
	return &ReferenceQueue{
		semantics: semantics,
		maxLen:    maxLen,
		entries:   make([]entry, 0, initCap),
	}
}

// Semantics reports the queue's fixed reference semantics.
func (q *ReferenceQueue) Semantics() Semantics { return q.semantics }

// Len reports the queue's current live-entry count.
func (q *ReferenceQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Lock and Unlock expose the queue's internal spinlock (spec.md §7's
// QueueLock) to the collection driver, which holds it across the whole
// stop-the-world window - from before Synchronize to after FinishRV - so
// that AddReference blocks rather than racing with scan. scan itself
// assumes this lock is already held; it does not take it again.
func (q *ReferenceQueue) Lock()   { q.mu.Lock() }
func (q *ReferenceQueue) Unlock() { q.mu.Unlock() }

// AddReference registers ref, owned by vm, with this queue. It is called
// whenever the managed runtime constructs a new reference object of this
// queue's semantics. Safe for concurrent use by any number of mutator
// threads; while a collection holds the queue's lock (see Lock), it blocks
// until that collection ends.
func (q *ReferenceQueue) AddReference(vm VM, ref any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.maxLen {
		return ErrQueueOverflow
	}
	q.entries = append(q.entries, entry{vm: vm, ref: ref})
	return nil
}

// scan runs the per-entry algorithm in spec.md §4.2 against every live
// reference in the queue, appending any that survive with a cleared
// referent to toEnqueue for the ReferenceThread to deliver asynchronously.
// The caller must already hold q's lock (see Lock) and every mutator must
// be parked at a safepoint.
func (q *ReferenceQueue) scan(c Collector, closure collector.Closure, toEnqueue *[]entry) {
	kept := q.entries[:0]
	for _, ent := range q.entries {
		if !c.IsLive(ent.ref, closure) {
			// the reference object itself did not survive; its referent
			// slot is meaningless now, but clear it defensively and drop
			// the entry.
			ent.vm.SetReferent(ent.ref, nil)
			continue
		}

		referent := ent.vm.GetReferent(ent.ref)
		if referent == nil {
			continue
		}

		if q.semantics == Soft {
			c.RetainReferent(referent, closure)
		}

		forwardedRef := c.GetForwardedReference(ent.ref, closure)
		if c.IsLive(referent, closure) {
			ent.vm.SetReferent(forwardedRef, c.GetForwardedReferent(referent, closure))
			kept = append(kept, entry{vm: ent.vm, ref: forwardedRef})
			continue
		}

		ent.vm.SetReferent(forwardedRef, nil)
		*toEnqueue = append(*toEnqueue, entry{vm: ent.vm, ref: forwardedRef})
	}
	q.entries = kept
}
