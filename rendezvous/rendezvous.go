// Package rendezvous implements the stop-the-world coordination described in
// spec.md §4.1: a cooperative strategy, where mutators poll a yield flag at
// compiler-inserted safepoints, and an uncooperative strategy, where
// mutators are asynchronously signalled. Both strategies share the same
// Rendezvous type and operation set; the strategy chosen at construction is
// fixed for the Rendezvous's lifetime.
package rendezvous

import "sync"

// Strategy selects how a Rendezvous brings other threads to a safepoint.
type Strategy int

const (
	// Cooperative rendezvous relies on mutators polling a yield flag at
	// compiler-inserted safepoints (Thread.DoYield).
	Cooperative Strategy = iota
	// Uncooperative rendezvous asynchronously signals mutators that cannot
	// be polled.
	Uncooperative
)

func (s Strategy) String() string {
	switch s {
	case Cooperative:
		return "cooperative"
	case Uncooperative:
		return "uncooperative"
	default:
		return "unknown"
	}
}

// Thread is the minimal per-thread state a Rendezvous needs. vmkit.Thread
// implements this interface; it is declared here (rather than depended on)
// so this package stays independent of the root package's thread registry.
type Thread interface {
	// DoYield/SetDoYield is the rendezvous-requested flag: the hot safepoint
	// check every cooperative mutator performs, and the "a GC is already in
	// progress" signal StartCollection checks.
	DoYield() bool
	SetDoYield(bool)

	// JoinedRV/SetJoinedRV marks whether this thread has already parked for
	// the rendezvous currently in progress.
	JoinedRV() bool
	SetJoinedRV(bool)

	// ParkedSP/SetParkedSP models spec.md's "lastSP != nil" check: true
	// exactly while the thread is cooperatively parked, or is executing
	// uncooperative native code outside the mutator.
	ParkedSP() bool
	SetParkedSP(bool)

	// Signal asks this specific thread to call Join, for the uncooperative
	// strategy. It must not block. The cooperative strategy never calls it.
	Signal()
}

// Registry supplies the running-thread snapshot and the thread-list lock
// (vmkitLock in spec.md §4.4) that Synchronize and FinishRV require to be
// held across the whole stop-the-world window.
type Registry interface {
	// LockThreadList/UnlockThreadList guard the running-thread list. The
	// caller of Synchronize/FinishRV already holds this lock, per spec.md.
	LockThreadList()
	UnlockThreadList()
	// RunningThreads returns a snapshot of every currently-running thread,
	// including the caller. Must only be called with the thread-list lock
	// held.
	RunningThreads() []Thread
	// CurrentThread returns the calling goroutine's Thread.
	CurrentThread() Thread
}

// Rendezvous coordinates a single stop-the-world collection at a time. It is
// safe for concurrent use by every mutator thread registered with the same
// Registry.
type Rendezvous struct {
	strategy Strategy
	registry Registry

	mu        sync.Mutex // the rendezvous lock (_lockRV upstream)
	condJoin  *sync.Cond // condInitiator: broadcast as each thread joins
	condEndRV *sync.Cond // condEndRV: broadcast when the collection ends

	nbJoined int
	total    int // snapshot of the running-thread count for this rendezvous
}

// New constructs a Rendezvous using the given strategy, coordinating
// against registry's running-thread list.
func New(strategy Strategy, registry Registry) *Rendezvous {
	r := &Rendezvous{strategy: strategy, registry: registry}
	r.condJoin = sync.NewCond(&r.mu)
	r.condEndRV = sync.NewCond(&r.mu)
	return r
}

// Strategy returns the fixed strategy this Rendezvous was constructed with.
func (r *Rendezvous) Strategy() Strategy { return r.strategy }

// StartRV acquires the rendezvous lock and returns with it held. The caller
// must follow with either Synchronize (to drive a collection) or CancelRV
// (to yield to one already in progress).
func (r *Rendezvous) StartRV() {
	r.mu.Lock()
}

// CancelRV releases the rendezvous lock without stopping anyone. Used by a
// thread that discovers (via Thread.DoYield) that another rendezvous is
// already under way.
func (r *Rendezvous) CancelRV() {
	r.mu.Unlock()
}

// Synchronize brings every other running thread to a safepoint. The caller
// must already hold the rendezvous lock (via StartRV) and the registry's
// thread-list lock; it returns with both still held, and with every other
// thread's JoinedRV true or ParkedSP true.
func (r *Rendezvous) Synchronize() {
	self := r.registry.CurrentThread()
	threads := r.registry.RunningThreads()
	r.total = len(threads)
	r.nbJoined = 0

	switch r.strategy {
	case Cooperative:
		for _, t := range threads {
			t.SetDoYield(true)
		}
		self.SetJoinedRV(true)
		for _, t := range threads {
			if t != self && t.ParkedSP() {
				t.SetJoinedRV(true)
				r.nbJoined++
			}
		}
	case Uncooperative:
		for _, t := range threads {
			if t != self {
				// SetDoYield happens here, under the thread-list lock,
				// exactly as in the cooperative case: it is what a thread
				// returning from a blocking syscall (because Signal
				// interrupted it) or crossing a JoinBeforeUncooperative/
				// JoinAfterUncooperative boundary actually observes to
				// park itself. Signal's job is strictly the OS-level
				// interrupt; nothing runs synchronously on the target's
				// behalf (see rendezvous/signal_unix.go).
				t.SetDoYield(true)
				t.Signal()
			}
		}
	}

	// "add myself" (waitRV upstream): the initiator counts as joined without
	// parking, since it is the one driving the collection.
	r.nbJoined++
	for r.nbJoined != r.total {
		r.condJoin.Wait()
	}
}

// markJoined records that the calling (non-initiator) thread has parked,
// waking the initiator once every running thread has joined. Must be called
// with r.mu held.
func (r *Rendezvous) markJoined() {
	r.nbJoined++
	if r.nbJoined == r.total {
		r.condJoin.Broadcast()
	}
}

// waitEndOfRV parks self until FinishRV broadcasts. Must be called with
// r.mu held; releases it while waiting.
func (r *Rendezvous) waitEndOfRV(self Thread) {
	for self.DoYield() {
		r.condEndRV.Wait()
	}
}

// Join is called by a thread that has observed DoYield (cooperative) or
// been signalled (uncooperative). It parks the calling thread until
// FinishRV runs.
func (r *Rendezvous) Join(self Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.strategy {
	case Uncooperative:
		self.SetParkedSP(true)
		r.markJoined()
		r.waitEndOfRV(self)
		self.SetParkedSP(false)
	case Cooperative:
		self.SetParkedSP(true)
		self.SetJoinedRV(true)
		r.markJoined()
		r.waitEndOfRV(self)
		self.SetParkedSP(false)
	}
}

// JoinBeforeUncooperative is called by a thread about to enter a region of
// uncooperative native code. It first parks if a rendezvous is pending, then
// marks the thread ParkedSP for the duration of the region, so a later
// Synchronize counts it as joined without the thread polling DoYield itself.
// Under the Uncooperative strategy it is also one of the boundaries where a
// thread observes the DoYield set by Synchronize and parks.
func (r *Rendezvous) JoinBeforeUncooperative(self Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if self.DoYield() {
		if !self.JoinedRV() {
			self.SetJoinedRV(true)
			r.markJoined()
		}
		r.waitEndOfRV(self)
	}
	self.SetParkedSP(true)
}

// JoinAfterUncooperative is the mirror of JoinBeforeUncooperative, called on
// the way back into cooperative code with the SP recorded while in the
// uncooperative region.
func (r *Rendezvous) JoinAfterUncooperative(self Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if self.DoYield() {
		self.SetParkedSP(true)
		if !self.JoinedRV() {
			self.SetJoinedRV(true)
			r.markJoined()
		}
		r.waitEndOfRV(self)
	}
	self.SetParkedSP(false)
}

// FinishRV clears every running thread's DoYield/JoinedRV flags, broadcasts
// the end-of-rendezvous condition, and releases the rendezvous lock. It
// leaves the registry's thread-list lock held; the caller releases it
// afterwards (vmkit.VMKit.EndCollection does so once the per-VM
// EndCollection hooks have run). It must be called by the same thread that
// called Synchronize.
func (r *Rendezvous) FinishRV() {
	for _, t := range r.registry.RunningThreads() {
		t.SetDoYield(false)
		t.SetJoinedRV(false)
	}
	r.nbJoined = 0
	r.total = 0
	r.condEndRV.Broadcast()
	r.mu.Unlock()
}

// PrepareForJoin is called once per thread attach (uncooperative strategy
// only), after RegisterThread has installed the signal handler, and
// defensively re-joins if a rendezvous was requested before that
// registration completed (spec.md §4.1 step 3). It installs nothing itself;
// for the cooperative strategy it is a no-op.
func (r *Rendezvous) PrepareForJoin(self Thread) {
	if r.strategy != Uncooperative {
		return
	}
	r.mu.Lock()
	missed := self.DoYield() && !self.JoinedRV()
	r.mu.Unlock()
	if missed {
		r.Join(self)
	}
}
