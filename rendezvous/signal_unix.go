//go:build unix

package rendezvous

import (
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// rendezvousSignal is the reserved "platform-specific user signal" spec.md
// §4.1 calls for. SIGUSR1 is conventionally free for application use; the Go
// runtime itself reserves SIGURG for async preemption, so that one is
// avoided.
const rendezvousSignal = syscall.SIGUSR1

var installOnce sync.Once

// installSignalHandler registers the process-wide SIGUSR1 handler exactly
// once. Go's os/signal delivery has no mechanism to run code on the OS
// thread a signal actually landed on - every instance is forwarded to one
// shared channel, drained by one goroutine, regardless of which of N
// mutator threads SignalThread targeted. That means nothing run from this
// goroutine can stand in for the targeted thread actually reaching a
// safepoint: this goroutine is here solely so an unhandled SIGUSR1 (whose
// default disposition is to terminate the process) doesn't kill it.
//
// The real effect SignalThread buys the uncooperative strategy is entirely
// kernel-side: tgkill-ing a specific OS thread interrupts any blocking
// syscall it is in, making it return EINTR. A thread that was blocked this
// way resumes in Go code, which is exactly where
// Rendezvous.JoinAfterUncooperative's self.DoYield() check lives (set
// directly by Synchronize, under the thread-list lock, before Signal is
// ever sent - see rendezvous.go). That thread parks itself; this goroutine
// never calls Join on anyone's behalf. A thread executing pure, long-running
// uncooperative Go code with no JoinBeforeUncooperative/
// JoinAfterUncooperative boundary crossing and no blocking syscall cannot be
// forced to a safepoint from here - Go provides no such async-preemption
// hook to library code. That case is the one genuine gap in the
// uncooperative strategy's guarantee, not something this package can close.
func installSignalHandler() {
	installOnce.Do(func() {
		ch := make(chan os.Signal, 128)
		signal.Notify(ch, rendezvousSignal)
		go func() {
			for range ch {
			}
		}()
	})
}

// RegisterThread locks the calling goroutine to its current OS thread for
// the remainder of the returned registration's lifetime (so the returned
// tid stays valid) and installs the process-wide rendezvousSignal handler
// if not already installed. onSignal is accepted only to keep the same
// signature as the Windows build of this function (where it is genuinely
// invoked on the target thread via an APC); on Unix it is never called -
// see installSignalHandler's comment for why.
func RegisterThread(onSignal func()) (tid int32, deregister func(), err error) {
	runtime.LockOSThread()
	installSignalHandler()
	tid = int32(unix.Gettid())
	return tid, runtime.UnlockOSThread, nil
}

// SignalThread delivers rendezvousSignal to the OS thread tid, interrupting
// any blocking syscall it is in, so it returns and observes the
// rendezvous-requested state the next time it crosses a
// JoinBeforeUncooperative/JoinAfterUncooperative boundary.
func SignalThread(tid int32) error {
	return unix.Tgkill(unix.Getpid(), int(tid), rendezvousSignal)
}
