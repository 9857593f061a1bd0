// Package collector declares the contract the substrate requires from a
// pluggable garbage collector (spec.md §6, "Collector contract"). vmkit
// never implements a collector itself: it is an external collaborator,
// supplied by the host.
package collector

import "unsafe"

// Closure is the opaque, collector-defined value threaded through every
// tracing callback. The substrate never inspects it; it only passes it
// through to the collector and to VirtualMachine hooks.
type Closure = any

// Collector is implemented by the pluggable garbage collector. The
// substrate calls these during tracing, reference scanning, and
// finalization scanning; it never allocates, moves, or frees memory itself.
type Collector interface {
	// Allocate requests size bytes from the collector's heap. The substrate
	// itself never calls this for its own bookkeeping (its queues grow via
	// ordinary Go allocation) - it is here so a VirtualMachine hook can
	// reach the same collector vmkit was configured with.
	Allocate(size uintptr) (unsafe.Pointer, error)

	// IsLive reports whether obj is reachable from a strong root, as of the
	// current collection's trace.
	IsLive(obj any, closure Closure) bool

	// MarkAndTrace marks obj live and queues it (or its fields) for further
	// tracing.
	MarkAndTrace(obj any, closure Closure)

	// MarkAndTraceRoot marks and traces the object referenced by a root
	// slot, in place, allowing the collector to update the slot if it
	// relocates the object.
	MarkAndTraceRoot(slot *any, closure Closure)

	// GetForwardedReference resolves a possibly-relocated reference object.
	// Collectors that never move objects return r unchanged.
	GetForwardedReference(r any, closure Closure) any

	// GetForwardedReferent resolves a possibly-relocated referent.
	GetForwardedReferent(e any, closure Closure) any

	// GetForwardedFinalizable resolves a possibly-relocated finalizable
	// object.
	GetForwardedFinalizable(o any, closure Closure) any

	// RetainReferent keeps a soft reference's referent alive for this
	// cycle. Policy (e.g. memory-pressure driven) is entirely the
	// collector's; the substrate only exposes the hook.
	RetainReferent(e any, closure Closure)

	// RetainForFinalize resurrects o for one last finalization run.
	RetainForFinalize(o any, closure Closure)
}
