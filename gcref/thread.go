package gcref

import (
	"context"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/vmkit-go/vmkit/collector"
	"github.com/vmkit-go/vmkit/internal/workerloop"
	"golang.org/x/sync/semaphore"
)

// ReferenceThread owns the three reference queues (weak, soft, phantom) and
// the asynchronous worker that delivers cleared references to their owning
// VMs (spec.md §4.2, §5). A collection calls Scan once tracing has settled
// on the live set; Wake is then called once that collection ends, so the
// worker goroutine drains outside the stop-the-world window.
type ReferenceThread struct {
	Weak, Soft, Phantom *ReferenceQueue

	toEnqueueMu spinlock
	toEnqueue   []entry

	loop   *workerloop.Loop
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *logiface.Logger[*stumpy.Event]
}

// NewReferenceThread constructs a ReferenceThread whose worker runs up to
// concurrency enqueue callbacks at once. logger may be nil to disable
// diagnostics.
func NewReferenceThread(concurrency, queueInitCapacity, queueMaxLen int, logger *logiface.Logger[*stumpy.Event]) *ReferenceThread {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ReferenceThread{
		Weak:    NewReferenceQueue(Weak, queueInitCapacity, queueMaxLen),
		Soft:    NewReferenceQueue(Soft, queueInitCapacity, queueMaxLen),
		Phantom: NewReferenceQueue(Phantom, queueInitCapacity, queueMaxLen),
		loop:    workerloop.New(),
		sem:     semaphore.NewWeighted(int64(concurrency)),
		logger:  logger,
	}
}

// Start begins the background drain worker.
func (rt *ReferenceThread) Start() { rt.loop.Start(rt.drain) }

// Stop tears down the background drain worker, waiting for any in-flight
// enqueue callbacks to return.
func (rt *ReferenceThread) Stop() {
	rt.loop.Stop()
	rt.wg.Wait()
}

// Scan runs all three queues' scan pass against the collection in progress,
// staging any reference ready for delivery. Must be called with every
// mutator parked at a safepoint.
func (rt *ReferenceThread) Scan(c Collector, closure collector.Closure) {
	var batch []entry
	rt.Weak.scan(c, closure, &batch)
	rt.Soft.scan(c, closure, &batch)
	rt.Phantom.scan(c, closure, &batch)
	if len(batch) == 0 {
		return
	}
	rt.toEnqueueMu.Lock()
	rt.toEnqueue = append(rt.toEnqueue, batch...)
	rt.toEnqueueMu.Unlock()
}

// Wake notifies the background worker that a collection has ended and
// Scan may have staged new entries to deliver. Called by the collector
// driver (vmkit.VMKit.EndCollection) once it has released the rendezvous.
func (rt *ReferenceThread) Wake() { rt.loop.Wake() }

func (rt *ReferenceThread) drain(ctx context.Context) {
	rt.toEnqueueMu.Lock()
	batch := rt.toEnqueue
	rt.toEnqueue = nil
	rt.toEnqueueMu.Unlock()

	for _, ent := range batch {
		if err := rt.sem.Acquire(ctx, 1); err != nil {
			// context cancelled: Stop was called mid-drain, abandon the
			// remainder of this batch.
			return
		}
		rt.wg.Add(1)
		go func(ent entry) {
			defer rt.wg.Done()
			defer rt.sem.Release(1)
			defer rt.recoverEnqueuePanic()
			ent.vm.EnqueueReference(ent.ref)
		}(ent)
	}
}

func (rt *ReferenceThread) recoverEnqueuePanic() {
	if p := recover(); p != nil && rt.logger != nil {
		rt.logger.Err().Any("panic", p).Log("reference enqueue callback panicked")
	}
}
