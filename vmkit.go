package vmkit

import (
	"sync"
	"sync/atomic"

	"github.com/vmkit-go/vmkit/collector"
	"github.com/vmkit-go/vmkit/finalizer"
	"github.com/vmkit-go/vmkit/gcref"
	"github.com/vmkit-go/vmkit/rendezvous"
)

// VMKit is the process-wide substrate instance: it owns the VM slot array,
// the running thread list, the rendezvous, and the lazily-created reference
// and finalizer workers (spec.md §3).
type VMKit struct {
	collector collector.Collector
	logger    *Logger
	cfg       Config

	vmkitLock sync.Mutex // guards vms, running, nextID
	vms       []VirtualMachine
	running   []*Thread
	nextID    int64

	rv  *rendezvous.Rendezvous
	reg *registry

	refOnce sync.Once
	ref     *gcref.ReferenceThread
	finOnce sync.Once
	fin     *finalizer.FinalizerThread

	nonDaemon NonDaemonThreadManager

	functions *FunctionMap

	memLimit uint64
}

// registry implements rendezvous.Registry against a VMKit. current* tracks
// the initiator of the rendezvous currently in progress: it is only valid
// while that thread holds the rendezvous lock (via rendezvous.StartRV),
// which serializes every call into Synchronize/FinishRV, so there is never
// more than one legitimate reader.
type registry struct {
	vmk     *VMKit
	current atomic.Pointer[Thread]
}

func (r *registry) LockThreadList()   { r.vmk.vmkitLock.Lock() }
func (r *registry) UnlockThreadList() { r.vmk.vmkitLock.Unlock() }

func (r *registry) RunningThreads() []rendezvous.Thread {
	out := make([]rendezvous.Thread, len(r.vmk.running))
	for i, t := range r.vmk.running {
		out[i] = t
	}
	return out
}

func (r *registry) CurrentThread() rendezvous.Thread {
	return r.current.Load()
}

// New constructs a VMKit backed by the given collector. Panics if c is nil
// or any Option is invalid; see Config/Option in config.go.
func New(c collector.Collector, opts ...Option) *VMKit {
	collectorOrPanic(c)

	setupRuntime() // automaxprocs, see platform.go

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.autoMemLimit {
		applyGoMemLimit()
	}

	vmk := &VMKit{
		collector: c,
		logger:    cfg.logger,
		cfg:       cfg,
		functions: newFunctionMap(),
		memLimit:  detectMemoryLimit(),
	}
	vmk.reg = &registry{vmk: vmk}
	vmk.rv = rendezvous.New(cfg.rendezvousKind, vmk.reg)
	return vmk
}

// checkMemoryWarning logs once a queue add crosses the configured
// heap-usage ratio of the detected memory limit, ahead of the hard
// fatal-OOM policy spec.md §7 calls for on actual queue overflow.
func (vmk *VMKit) checkMemoryWarning(queueKind string) {
	if vmk.logger == nil {
		return
	}
	if ratio := heapUsageRatio(vmk.memLimit); ratio >= vmk.cfg.memWarnRatio {
		vmk.logger.Warning().Any("queue", queueKind).Log("heap usage approaching detected memory limit")
	}
}

// referenceThread lazily creates the reference worker, under vmkitLock, the
// first time a reference-bearing object is registered (spec.md §9 "Reference
// /finalizer worker lifecycles are lazily created").
func (vmk *VMKit) referenceThread() *gcref.ReferenceThread {
	vmk.refOnce.Do(func() {
		vmk.vmkitLock.Lock()
		defer vmk.vmkitLock.Unlock()
		vmk.ref = gcref.NewReferenceThread(vmk.cfg.workerConcurrency, vmk.cfg.queueInitCapacity, 0, vmk.logger)
		vmk.ref.Start()
	})
	return vmk.ref
}

// finalizerThread lazily creates the finalizer worker.
func (vmk *VMKit) finalizerThread() *finalizer.FinalizerThread {
	vmk.finOnce.Do(func() {
		vmk.fin = finalizer.NewFinalizerThread(vmk.cfg.workerConcurrency, vmk.cfg.queueInitCapacity, 0, vmk.logger)
		vmk.fin.Start()
	})
	return vmk.fin
}

// AddWeakReference, AddSoftReference, AddPhantomReference register ref
// (owned by vm) with the corresponding reference queue, creating the
// reference worker on first use.
func (vmk *VMKit) AddWeakReference(vm gcref.VM, ref any) error {
	q := vmk.referenceThread().Weak
	return vmk.addReference(q, vm, ref)
}
func (vmk *VMKit) AddSoftReference(vm gcref.VM, ref any) error {
	q := vmk.referenceThread().Soft
	return vmk.addReference(q, vm, ref)
}
func (vmk *VMKit) AddPhantomReference(vm gcref.VM, ref any) error {
	q := vmk.referenceThread().Phantom
	return vmk.addReference(q, vm, ref)
}

func (vmk *VMKit) addReference(q *gcref.ReferenceQueue, vm gcref.VM, ref any) error {
	if err := q.AddReference(vm, ref); err != nil {
		fatal(vmk.logger, "reference queue overflow", "semantics", q.Semantics().String())
		return err // unreachable in practice: fatal exits the process
	}
	vmk.checkMemoryWarning(q.Semantics().String())
	return nil
}

// AddFinalizationCandidate registers obj (owned by vm) as having a
// non-trivial finalizer, creating the finalizer worker on first use.
func (vmk *VMKit) AddFinalizationCandidate(vm finalizer.VM, obj any) error {
	if err := vmk.finalizerThread().Queue.Add(vm, obj); err != nil {
		fatal(vmk.logger, "finalization queue overflow")
		return err
	}
	vmk.checkMemoryWarning("finalization")
	return nil
}

// AddMethodInfo registers addr as the entry point of a managed method,
// described by info, with the IP->method map used by stack walking
// (spec.md §4.5).
func (vmk *VMKit) AddMethodInfo(addr uintptr, info MethodInfo) {
	vmk.functions.AddMethodInfo(addr, info)
}

// IPToMethodInfo resolves ip to the MethodInfo of its enclosing method, if
// any method covering ip has been registered.
func (vmk *VMKit) IPToMethodInfo(ip uintptr) (MethodInfo, bool) {
	return vmk.functions.IPToMethodInfo(ip)
}

// RemoveMethodInfos bulk-removes every method owned by owner, e.g. when a
// class loader or assembly is torn down.
func (vmk *VMKit) RemoveMethodInfos(owner any) {
	vmk.functions.RemoveMethodInfos(owner)
}

// AddVM registers vm, assigning it a stable slot (spec.md §4.4). Every
// currently-attached thread's per-VM data array is grown in lock-step.
func (vmk *VMKit) AddVM(vm VirtualMachine) int {
	vmk.vmkitLock.Lock()
	defer vmk.vmkitLock.Unlock()

	id := -1
	for i, slot := range vmk.vms {
		if slot == nil {
			id = i
			break
		}
	}
	if id < 0 {
		id = len(vmk.vms)
		newLen := len(vmk.vms) * 2
		if newLen == 0 {
			newLen = 1
		}
		grown := make([]VirtualMachine, newLen)
		copy(grown, vmk.vms)
		vmk.vms = grown
	}
	vmk.vms[id] = vm
	vm.SetVMID(id)

	for _, t := range vmk.running {
		t.growVMData(len(vmk.vms))
	}

	if vmk.logger != nil {
		vmk.logger.Debug().Int("vmID", id).Log("vm registered")
	}
	return id
}

// RemoveVM clears vm's slot. Returns ErrVMNotRegistered if the slot is
// already empty.
func (vmk *VMKit) RemoveVM(vm VirtualMachine) error {
	vmk.vmkitLock.Lock()
	defer vmk.vmkitLock.Unlock()

	id := vm.VMID()
	if id < 0 || id >= len(vmk.vms) || vmk.vms[id] == nil {
		return ErrVMNotRegistered
	}
	vmk.vms[id] = nil
	if vmk.logger != nil {
		vmk.logger.Debug().Int("vmID", id).Log("vm unregistered")
	}
	return nil
}

// Attach registers a new Thread with this VMKit, directly into the running
// list (spec.md's registerPreparedThread+registerRunningThread collapsed:
// vmkit never exposes a thread that is prepared but not yet running, since
// Go goroutines have no equivalent of "OS thread created but not yet
// scheduled"). If daemon is false, non-daemon accounting is entered; the
// caller must Detach to leave it.
func (vmk *VMKit) Attach(daemon bool) (*Thread, error) {
	vmk.vmkitLock.Lock()
	vmk.nextID++
	t := &Thread{vmkit: vmk, id: vmk.nextID}
	t.daemon.Store(daemon)
	t.vmData = make([]*VMThreadData, len(vmk.vms))
	vmk.running = append(vmk.running, t)
	vmk.vmkitLock.Unlock()

	if vmk.rv.Strategy() == rendezvous.Uncooperative {
		// The registered callback runs on t's own OS thread via a Windows
		// APC, where calling Join directly is safe; on Unix it is never
		// invoked at all, since nothing can run synchronously on the
		// signaled thread there (see rendezvous/signal_unix.go) - that
		// platform's threads instead observe Synchronize's direct
		// SetDoYield and join themselves at a
		// JoinBeforeUncooperative/JoinAfterUncooperative boundary, or after
		// a blocking syscall Signal interrupted. PrepareForJoin is the
		// defensive recheck for a signal that arrived in the narrow window
		// before this registration completed.
		tid, deregister, err := rendezvous.RegisterThread(func() { vmk.rv.Join(t) })
		if err != nil {
			fatal(vmk.logger, "failed to install rendezvous signal handler", "error", err.Error())
			return nil, err // unreachable: fatal exits
		}
		t.signalTID = tid
		t.signalDeregister = deregister
		vmk.rv.PrepareForJoin(t)
	}

	if !daemon {
		vmk.nonDaemon.Enter()
	}
	return t, nil
}

// Detach removes t from the running list. Returns ErrAlreadyDetached if t
// is not currently registered.
func (vmk *VMKit) Detach(t *Thread) error {
	vmk.vmkitLock.Lock()
	idx := -1
	for i, rt := range vmk.running {
		if rt == t {
			idx = i
			break
		}
	}
	if idx < 0 {
		vmk.vmkitLock.Unlock()
		return ErrAlreadyDetached
	}
	vmk.running = append(vmk.running[:idx], vmk.running[idx+1:]...)
	vmk.vmkitLock.Unlock()

	if t.signalDeregister != nil {
		t.signalDeregister()
	}
	if !t.Daemon() {
		vmk.nonDaemon.Leave()
	}
	return nil
}

// CollectionResult reports whether StartCollection actually drove a
// collection, or cancelled and joined one already in progress (spec.md
// §4.4 step 2, §8 property 4).
type CollectionResult int

const (
	// CollectionRan means this call drove the collection: StartCollection
	// synchronized every thread and the caller must call EndCollection.
	CollectionRan CollectionResult = iota
	// CollectionJoined means another thread was already driving a
	// collection; this call joined it and returned once it finished. The
	// caller must not call EndCollection.
	CollectionJoined
)

// StartCollection is the high-level "request a GC" entry point (spec.md
// §4.4). self must be a Thread currently attached to vmk.
func (vmk *VMKit) StartCollection(self *Thread) CollectionResult {
	vmk.rv.StartRV()

	if self.DoYield() {
		vmk.rv.CancelRV()
		vmk.rv.Join(self)
		return CollectionJoined
	}

	vmk.reg.LockThreadList()

	vmk.reg.current.Store(self)

	if vmk.ref != nil {
		vmk.ref.Weak.Lock()
		vmk.ref.Soft.Lock()
		vmk.ref.Phantom.Lock()
	}
	if vmk.fin != nil {
		vmk.fin.Queue.Lock()
	}

	for _, vm := range vmk.vms {
		if vm != nil {
			vm.StartCollection()
		}
	}

	vmk.rv.Synchronize()

	vmk.trace()

	return CollectionRan
}

// EndCollection is the mirror of StartCollection: finishes the rendezvous,
// runs per-VM EndCollection hooks, releases the worker-queue locks, wakes
// the reference/finalizer workers, and releases vmkitLock (spec.md §4.4).
// Must only be called after a StartCollection that returned CollectionRan.
func (vmk *VMKit) EndCollection() {
	vmk.rv.FinishRV()

	for _, vm := range vmk.vms {
		if vm != nil {
			vm.EndCollection()
		}
	}

	if vmk.fin != nil {
		vmk.fin.Queue.Unlock()
		vmk.fin.Wake()
	}
	if vmk.ref != nil {
		vmk.ref.Weak.Unlock()
		vmk.ref.Soft.Unlock()
		vmk.ref.Phantom.Unlock()
		vmk.ref.Wake()
	}

	vmk.reg.UnlockThreadList()

	if vmk.logger != nil {
		vmk.logger.Debug().Log("collection ended")
	}
}

// trace walks every VM's strong roots, then scans the reference and
// finalization queues against the resulting live set. Called with every
// mutator parked, strictly after Synchronize and strictly before
// EndCollection (spec.md §5's ordering guarantee).
func (vmk *VMKit) trace() {
	closure := vmk.cfg.closureFactory()

	for _, vm := range vmk.vms {
		if vm != nil {
			vm.Tracer(closure)
		}
	}

	if vmk.ref != nil {
		vmk.ref.Scan(vmk.collector, closure)
	}
	if vmk.fin != nil {
		vmk.fin.Scan(vmk.collector, closure)
	}
}

// WaitNonDaemonThreads blocks until every non-daemon thread has detached
// (spec.md §4.6, §8 S6): this is how a host process "joins" the managed
// application.
func (vmk *VMKit) WaitNonDaemonThreads() {
	vmk.nonDaemon.Wait()
}

// Stop tears down the reference and finalizer workers, if they were ever
// created. Safe to call even if neither was ever used.
func (vmk *VMKit) Stop() {
	if vmk.ref != nil {
		vmk.ref.Stop()
	}
	if vmk.fin != nil {
		vmk.fin.Stop()
	}
}
