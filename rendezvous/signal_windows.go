//go:build windows

package rendezvous

import (
	"runtime"
	"sync"

	"golang.org/x/sys/windows"
)

var registrations sync.Map // int32 (tid) -> windows.Handle

// RegisterThread locks the calling goroutine to its current OS thread (so
// the returned tid and thread handle stay valid for the registration's
// lifetime) and records the handle SignalThread needs to queue an APC,
// together with onSignal: the APC queued by SignalThread runs onSignal
// directly on the target thread once it enters an alertable wait (see
// Rendezvous.Synchronize, which calls Thread.Signal for each target).
func RegisterThread(onSignal func()) (tid int32, deregister func(), err error) {
	runtime.LockOSThread()
	h, err := windows.OpenThread(windows.THREAD_SET_CONTEXT, false, windows.GetCurrentThreadId())
	if err != nil {
		runtime.UnlockOSThread()
		return 0, nil, err
	}
	id := int32(windows.GetCurrentThreadId())
	registrations.Store(id, struct {
		handle   windows.Handle
		onSignal func()
	}{h, onSignal})
	return id, func() {
		if v, ok := registrations.LoadAndDelete(id); ok {
			_ = windows.CloseHandle(v.(struct {
				handle   windows.Handle
				onSignal func()
			}).handle)
		}
		runtime.UnlockOSThread()
	}, nil
}

// SignalThread queues an APC to the OS thread tid, running its registered
// onSignal callback once that thread next enters an alertable wait state.
// Unlike the Unix SIGUSR1 path, this precisely targets a single thread; its
// limitation is timing, not identity: the APC only runs once the target
// thread becomes alertable.
func SignalThread(tid int32) error {
	v, ok := registrations.Load(tid)
	if !ok {
		return windows.ERROR_INVALID_PARAMETER
	}
	reg := v.(struct {
		handle   windows.Handle
		onSignal func()
	})
	return windows.QueueUserAPC(apcCallback(reg.onSignal), reg.handle, 0)
}

// apcCallback adapts a Go closure to the uintptr-based APC function pointer
// windows.QueueUserAPC expects. x/sys/windows resolves this via its own
// syscall trampoline when the argument is a Go func value wrapped this way.
func apcCallback(f func()) uintptr {
	return windows.NewCallback(func(_ uintptr) uintptr {
		f()
		return 0
	})
}
