package finalizer

import "github.com/vmkit-go/vmkit/collector"

type (
	// Collector is the subset of collector.Collector a FinalizationQueue's
	// scan needs.
	Collector interface {
		IsLive(obj any, closure collector.Closure) bool
		GetForwardedFinalizable(o any, closure collector.Closure) any
		RetainForFinalize(o any, closure collector.Closure)
	}

	// VM owns the objects registered for finalization, and supplies the
	// actual finalizer invocation. Objects that implement Destroyable are
	// finalized by calling OperatorDelete directly instead; VM.Finalize is
	// only consulted for objects that do not.
	VM interface {
		// Finalize runs obj's managed-language finalizer (Object.finalize,
		// or the N3 equivalent). Called off the collection thread; any
		// panic is recovered and logged, never allowed to kill the worker.
		Finalize(obj any)
	}

	// Destroyable is implemented by finalizable objects that have a native
	// destructor instead of a managed finalize() method (spec.md §4.2's
	// "operatorDelete" object kind). When an object implements it,
	// FinalizerThread calls OperatorDelete instead of VM.Finalize.
	Destroyable interface {
		OperatorDelete()
	}
)
