package gcref

// Semantics selects how a ReferenceQueue's scan treats a live reference
// object whose referent did not survive tracing (spec.md §4.2).
type Semantics int

const (
	// Weak references never keep their referent alive; a referent that is
	// not otherwise reachable is cleared unconditionally.
	Weak Semantics = iota
	// Soft references ask the collector (via Collector.RetainReferent) to
	// keep the referent alive under memory pressure, before falling back to
	// weak behaviour.
	Soft
	// Phantom references are always cleared before being enqueued; callers
	// never observe the referent through a phantom reference object itself.
	Phantom
)

func (s Semantics) String() string {
	switch s {
	case Weak:
		return "weak"
	case Soft:
		return "soft"
	case Phantom:
		return "phantom"
	default:
		return "unknown"
	}
}
