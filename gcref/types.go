package gcref

import "github.com/vmkit-go/vmkit/collector"

type (
	// Collector is the subset of collector.Collector a ReferenceQueue's scan
	// needs. It is declared locally (rather than embedding
	// collector.Collector) so gcref documents exactly which hooks reference
	// scanning drives.
	Collector interface {
		IsLive(obj any, closure collector.Closure) bool
		GetForwardedReference(r any, closure collector.Closure) any
		GetForwardedReferent(e any, closure collector.Closure) any
		RetainReferent(e any, closure collector.Closure)
	}

	// VM is the per-reference-object owner: the managed-language reference
	// type (java.lang.ref.Reference and friends, or their N3 equivalent)
	// that vmkit's scan mutates in place. A reference object is opaque to
	// gcref; VM is how the queue reads and clears its referent slot, and how
	// a cleared reference is handed back to the language runtime.
	VM interface {
		// GetReferent reads ref's referent slot.
		GetReferent(ref any) any
		// SetReferent overwrites ref's referent slot, nil to clear it.
		SetReferent(ref any, referent any)
		// EnqueueReference is called, off the collection thread, once ref's
		// referent has been cleared and ref is ready for the managed
		// runtime's reference-queue machinery (or finalizer thread, for
		// PhantomReference-like semantics layered on top of this package).
		EnqueueReference(ref any)
	}
)
