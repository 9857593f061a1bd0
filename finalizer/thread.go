package finalizer

import (
	"context"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/vmkit-go/vmkit/collector"
	"github.com/vmkit-go/vmkit/internal/workerloop"
	"golang.org/x/sync/semaphore"
)

// FinalizerThread owns the FinalizationQueue and the worker that runs
// finalizers asynchronously, after the collection that made an object
// unreachable has already ended (spec.md §4.3).
type FinalizerThread struct {
	Queue *FinalizationQueue

	loop   *workerloop.Loop
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *logiface.Logger[*stumpy.Event]
}

// NewFinalizerThread constructs a FinalizerThread whose worker runs up to
// concurrency finalizers at once.
func NewFinalizerThread(concurrency, queueInitCapacity, queueMaxLen int, logger *logiface.Logger[*stumpy.Event]) *FinalizerThread {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &FinalizerThread{
		Queue:  NewFinalizationQueue(queueInitCapacity, queueMaxLen),
		loop:   workerloop.New(),
		sem:    semaphore.NewWeighted(int64(concurrency)),
		logger: logger,
	}
}

// Start begins the background finalizer worker.
func (ft *FinalizerThread) Start() { ft.loop.Start(ft.drain) }

// Stop tears down the worker, waiting for any in-flight finalizer calls.
func (ft *FinalizerThread) Stop() {
	ft.loop.Stop()
	ft.wg.Wait()
}

// Scan runs the FinalizationQueue's scan pass. Must be called with every
// mutator parked at a safepoint, strictly after reference scanning and
// strictly before the rendezvous finishes (spec.md §4.4 step 4).
func (ft *FinalizerThread) Scan(c Collector, closure collector.Closure) {
	ft.Queue.scan(c, closure)
}

// Wake notifies the background worker that a collection has ended and the
// ready-to-run set may be non-empty.
func (ft *FinalizerThread) Wake() { ft.loop.Wake() }

func (ft *FinalizerThread) drain(ctx context.Context) {
	ready := ft.Queue.drainReady()
	for _, cand := range ready {
		if err := ft.sem.Acquire(ctx, 1); err != nil {
			return
		}
		ft.wg.Add(1)
		go func(cand candidate) {
			defer ft.wg.Done()
			defer ft.sem.Release(1)
			ft.finalizeOne(cand)
		}(cand)
	}
}

// finalizeOne runs exactly one finalizer, per spec.md §4.3: a Destroyable
// object's OperatorDelete is called directly (the "operatorDelete" virtual-
// table flag upstream); otherwise the owning VM's Finalize hook runs. Any
// panic (the Go analogue of "exceptions are caught and discarded") is
// recovered and logged, never allowed to escape the worker.
func (ft *FinalizerThread) finalizeOne(cand candidate) {
	defer func() {
		if p := recover(); p != nil && ft.logger != nil {
			ft.logger.Err().Any("panic", p).Log("finalizer callback panicked")
		}
	}()
	if d, ok := cand.obj.(Destroyable); ok {
		d.OperatorDelete()
		return
	}
	cand.vm.Finalize(cand.obj)
}
