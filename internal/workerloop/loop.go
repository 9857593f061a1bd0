// Package workerloop implements the small goroutine-lifecycle shape used by
// every asynchronous worker in vmkit (gcref.ReferenceThread,
// finalizer.FinalizerThread): a single background goroutine, woken by a
// buffered "wake" signal rather than continuously polling, and torn down via
// a cancelable context. It generalises the ctx/cancel/done fields from
// microbatch.Batcher's lifecycle, replacing microbatch's job/batch channels
// with a single coalescing wake signal, since these workers drain a shared
// queue rather than accepting individual submissions.
package workerloop

import (
	"context"
	"sync"
)

// Loop runs a single drain function on its own goroutine, re-running it
// every time Wake is called (coalescing wakes that arrive while drain is
// already running), until Stop.
type Loop struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}
	once   sync.Once
}

// New constructs a Loop. Start must be called once to begin draining.
func New() *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
}

// Start runs drain on a new goroutine, once per wake, until Stop.
func (l *Loop) Start(drain func(ctx context.Context)) {
	go l.run(drain)
}

func (l *Loop) run(drain func(ctx context.Context)) {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.wake:
			drain(l.ctx)
		}
	}
}

// Wake requests another drain pass. Non-blocking: if a wake is already
// pending, this is a no-op, since a single drain pass always observes
// whatever is queued as of when it runs.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Stop cancels the loop's context and waits for the running (or pending)
// drain pass, if any, to return. Safe to call more than once.
func (l *Loop) Stop() {
	l.once.Do(l.cancel)
	<-l.done
}
