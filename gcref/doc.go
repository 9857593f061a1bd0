// Package gcref implements the weak/soft/phantom reference subsystem
// described in spec.md §4.2: three growable ReferenceQueues scanned during
// a collection, and a ReferenceThread that asynchronously delivers cleared
// references to a VirtualMachine's enqueue callback.
package gcref

import "errors"

// ErrQueueOverflow is returned by ReferenceQueue.AddReference when adding
// would grow the queue past its configured maximum length. Per spec.md §7
// this is a fatal condition for the caller to surface (growth past any
// sane bound signals a collector bug, not ordinary steady-state growth).
var ErrQueueOverflow = errors.New("gcref: reference queue overflow")
