package vmkit

import (
	"sync"
	"sync/atomic"

	"github.com/vmkit-go/vmkit/rendezvous"
)

// Thread is a managed mutator thread attached to a VMKit. It implements
// rendezvous.Thread, and carries the per-(Thread, VM) data array spec.md §3
// calls VMThreadData.
type Thread struct {
	vmkit *VMKit
	id    int64

	doYield  atomic.Bool
	joinedRV atomic.Bool
	parkedSP atomic.Bool

	daemon atomic.Bool

	interruptMu sync.Mutex
	interrupted bool
	waitCond    *sync.Cond // signalled on Interrupt, if currently parked in Monitor.Wait

	signalTID        int32
	signalDeregister func()

	vmDataMu sync.RWMutex
	vmData   []*VMThreadData // parallel to VMKit.vms, indexed by vmID

	// lastAttachedVMData caches the most recently touched VMThreadData, so
	// a thread that only ever attaches to one VM never has to go through
	// the vmData slice at all on its hot path (mvm::SystemThread's MyVM
	// back-pointer). Valid only while lastAttachedVM matches the vmID being
	// looked up; VMData invalidates it the moment a second distinct vmID is
	// touched, falling back to the slice from then on.
	lastAttachedVM     int
	lastAttachedVMData *VMThreadData
}

// VMThreadData is per-(Thread, VM) state, allocated the first time a thread
// attaches to a particular VM (spec.md §3). Front-ends embed this to carry
// their own per-thread-per-VM bookkeeping; the substrate only allocates and
// indexes the slot.
type VMThreadData struct {
	VMID int
	Data any
}

// rendezvous.Thread implementation. All three flags are plain atomics: the
// cooperative safepoint check (DoYield) must be cheap enough to inline at
// every compiler-inserted yield point.

func (t *Thread) DoYield() bool      { return t.doYield.Load() }
func (t *Thread) SetDoYield(v bool)  { t.doYield.Store(v) }
func (t *Thread) JoinedRV() bool     { return t.joinedRV.Load() }
func (t *Thread) SetJoinedRV(v bool) { t.joinedRV.Store(v) }
func (t *Thread) ParkedSP() bool     { return t.parkedSP.Load() }
func (t *Thread) SetParkedSP(v bool) { t.parkedSP.Store(v) }

// Signal asks the rendezvous machinery to deliver an async join request to
// this thread's OS thread (uncooperative strategy only; see
// rendezvous/signal_unix.go and rendezvous/signal_windows.go).
func (t *Thread) Signal() {
	if t.signalTID != 0 {
		_ = rendezvous.SignalThread(t.signalTID)
	}
}

// ID returns the thread's VMKit-assigned identifier, stable for its
// lifetime.
func (t *Thread) ID() int64 { return t.id }

// Daemon reports whether this thread is a daemon thread (spec.md §4.6,
// §8 S6): a daemon's continued existence does not block
// VMKit.WaitNonDaemonThreads.
func (t *Thread) Daemon() bool { return t.daemon.Load() }

// VMData returns the per-(Thread, vm) slot for vmID, allocating it (via new)
// if this is the thread's first attach to that VM. If vmID is beyond the
// thread's current per-VM array, the array is grown to fit it; callers
// normally pass a vmID obtained from VMKit.AddVM, which already grows both
// arrays in lock-step.
func (t *Thread) VMData(vmID int) *VMThreadData {
	t.vmDataMu.RLock()
	if t.lastAttachedVMData != nil && t.lastAttachedVM == vmID {
		d := t.lastAttachedVMData
		t.vmDataMu.RUnlock()
		return d
	}
	if vmID < len(t.vmData) && t.vmData[vmID] != nil {
		d := t.vmData[vmID]
		t.vmDataMu.RUnlock()
		return d
	}
	t.vmDataMu.RUnlock()

	t.vmDataMu.Lock()
	defer t.vmDataMu.Unlock()
	if vmID >= len(t.vmData) {
		grown := make([]*VMThreadData, vmID+1)
		copy(grown, t.vmData)
		t.vmData = grown
	}
	if t.vmData[vmID] == nil {
		t.vmData[vmID] = &VMThreadData{VMID: vmID}
	}
	d := t.vmData[vmID]
	if t.lastAttachedVMData == nil && t.lastAttachedVM >= 0 {
		t.lastAttachedVM = vmID
		t.lastAttachedVMData = d
	} else if t.lastAttachedVM != vmID {
		// a second distinct VM has now been touched: the single-slot cache
		// can no longer answer every lookup, so stop trusting it and fall
		// back to the slice from here on (-1 keeps it from being refilled).
		t.lastAttachedVM = -1
		t.lastAttachedVMData = nil
	}
	return d
}

// growVMData is called by VMKit.AddVM, under vmkitLock, to keep every
// registered thread's per-VM array the same length as VMKit.vms.
func (t *Thread) growVMData(n int) {
	t.vmDataMu.Lock()
	defer t.vmDataMu.Unlock()
	if n > len(t.vmData) {
		grown := make([]*VMThreadData, n)
		copy(grown, t.vmData)
		t.vmData = grown
	}
}

// Interrupt sets this thread's interrupt flag and, if it is currently
// parked in a Monitor.Wait, wakes it (spec.md §5, §7 "Interrupted wait").
func (t *Thread) Interrupt() {
	t.interruptMu.Lock()
	t.interrupted = true
	if t.waitCond != nil {
		t.waitCond.Broadcast()
	}
	t.interruptMu.Unlock()
}

// interruptedAndClear reports and clears the interrupt flag; used by
// RecursiveMonitor.Wait to implement "clear flag, raise interrupted error".
func (t *Thread) interruptedAndClear() bool {
	t.interruptMu.Lock()
	defer t.interruptMu.Unlock()
	v := t.interrupted
	t.interrupted = false
	return v
}

// interruptedAndPeek reports the interrupt flag without clearing it, so a
// Wait loop can stop parking without losing the flag to a racing Interrupt
// that arrives between the check and the final interruptedAndClear.
func (t *Thread) interruptedAndPeek() bool {
	t.interruptMu.Lock()
	defer t.interruptMu.Unlock()
	return t.interrupted
}
