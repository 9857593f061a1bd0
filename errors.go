package vmkit

import (
	"errors"
	"fmt"
	"os"
)

// OsExit is called by fatal to terminate the process. Tests override it to
// observe the fatal path without actually exiting.
var OsExit = os.Exit

var (
	// ErrNilCollector is the value New panics with when it is passed a nil
	// collector.Collector.
	ErrNilCollector = errors.New("vmkit: nil collector")

	// ErrVMNotRegistered is returned by RemoveVM for a slot that is already
	// empty.
	ErrVMNotRegistered = errors.New("vmkit: vm not registered")

	// ErrAlreadyDetached is returned by Detach on a thread that has already
	// left the running list.
	ErrAlreadyDetached = errors.New("vmkit: thread already detached")
)

// InterruptedError is returned by RecursiveMonitor.Wait when the waiting
// thread observes Thread.Interrupt having been called.
type InterruptedError struct {
	Thread *Thread
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("vmkit: thread %d interrupted", e.Thread.id)
}

// IllegalMonitorStateError is raised when Wait/Notify/NotifyAll is called by
// a thread that does not currently hold the monitor.
type IllegalMonitorStateError struct {
	Op string
}

func (e *IllegalMonitorStateError) Error() string {
	return fmt.Sprintf("vmkit: illegal monitor state: %s called without holding the lock", e.Op)
}

// fatal logs msg at the highest severity and terminates the process via
// OsExit. It is used exclusively for the two conditions spec.md marks
// fatal: a reference/finalization queue that cannot grow, and a failed
// signal-handler installation for the uncooperative rendezvous.
func fatal(logger *Logger, msg string, args ...any) {
	if logger != nil {
		e := logger.Emerg()
		for i := 0; i+1 < len(args); i += 2 {
			if key, ok := args[i].(string); ok {
				e = e.Any(key, args[i+1])
			}
		}
		e.Log(msg)
	}
	OsExit(2)
}
