// Package finalizer implements the finalization half of spec.md §4.2: a
// FinalizationQueue of objects with a non-trivial finalizer, scanned once
// per collection, and a FinalizerThread that runs finalizers asynchronously
// on a bounded worker pool so a slow or buggy finalizer cannot stall the
// next collection.
package finalizer

import "errors"

// ErrQueueOverflow mirrors gcref.ErrQueueOverflow: returned by
// FinalizationQueue.Add when the queue has grown past its configured
// maximum length.
var ErrQueueOverflow = errors.New("finalizer: finalization queue overflow")
