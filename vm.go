package vmkit

import "github.com/vmkit-go/vmkit/collector"

// VirtualMachine is implemented by each managed-language front-end (a J3-
// style JVM, an N3-style CLR, or any other). VMKit calls these hooks;
// a VirtualMachine never calls back into VMKit except through the methods
// VMKit hands it at registration (see VMKit.AddVM).
type VirtualMachine interface {
	// VMID returns this VM's stable slot index, assigned by VMKit.AddVM.
	VMID() int
	// SetVMID is called exactly once, by VMKit.AddVM, to record the
	// assigned slot.
	SetVMID(id int)

	// Tracer marks every strong root this VM owns (its classes, static
	// fields, and heap roots other than mutator stacks, which VMKit itself
	// walks via the stack walker). Called with every mutator parked.
	Tracer(closure collector.Closure)
	// StartCollection lets the VM snapshot state from outside the
	// stop-the-world window, before the rendezvous synchronizes.
	StartCollection()
	// EndCollection is the mirror of StartCollection, called after the
	// rendezvous finishes.
	EndCollection()

	// GetReferent reads ref's referent slot (gcref.VM).
	GetReferent(ref any) any
	// SetReferent overwrites ref's referent slot, nil to clear it.
	SetReferent(ref any, referent any)
	// EnqueueReference delivers a cleared reference to the managed
	// runtime's reference-queue machinery, off the collection thread.
	EnqueueReference(ref any)

	// Finalize runs obj's managed-language finalizer (finalizer.VM).
	Finalize(obj any)

	// GetObjectSize reports obj's size in bytes, used for memcpy-style
	// cloning by front-ends.
	GetObjectSize(obj any) uintptr

	// RunApplicationImpl is the VM's entry point, invoked on a
	// LauncherThread registered as non-daemon. argv is passed through
	// verbatim from the host executable; the core never parses it.
	RunApplicationImpl(argv []string) error
}

// RunApplication spawns a LauncherThread for vm: attaches it to vmk as a
// non-daemon mutator, then calls vm.RunApplicationImpl on it. It returns
// once RunApplicationImpl returns, having already left non-daemon mode and
// detached.
func RunApplication(vmk *VMKit, vm VirtualMachine, argv []string) error {
	t, err := vmk.Attach(false)
	if err != nil {
		return err
	}
	defer vmk.Detach(t)
	return vm.RunApplicationImpl(argv)
}
