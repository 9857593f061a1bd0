package finalizer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmkit-go/vmkit/collector"
)

type fakeVM struct {
	finalized []any
}

func (f *fakeVM) Finalize(obj any) { f.finalized = append(f.finalized, obj) }

type destroyableObj struct {
	destroyed bool
}

func (d *destroyableObj) OperatorDelete() { d.destroyed = true }

type fakeCollector struct {
	live map[any]bool
}

func newFakeCollector() *fakeCollector { return &fakeCollector{live: map[any]bool{}} }

func (c *fakeCollector) IsLive(obj any, _ collector.Closure) bool               { return c.live[obj] }
func (c *fakeCollector) GetForwardedFinalizable(o any, _ collector.Closure) any { return o }
func (c *fakeCollector) RetainForFinalize(any, collector.Closure)               {}

func TestFinalizationQueue_AddOverflow(t *testing.T) {
	q := NewFinalizationQueue(1, 1)
	vm := &fakeVM{}
	require.NoError(t, q.Add(vm, "a"))
	require.ErrorIs(t, q.Add(vm, "b"), ErrQueueOverflow)
}

func TestFinalizationQueue_ScanKeepsLiveCandidates(t *testing.T) {
	q := NewFinalizationQueue(4, 0)
	vm := &fakeVM{}
	require.NoError(t, q.Add(vm, "alive"))

	c := newFakeCollector()
	c.live["alive"] = true

	q.Lock()
	q.scan(c, nil)
	q.Unlock()

	require.Empty(t, q.drainReady())
}

func TestFinalizationQueue_ScanMovesDeadCandidatesToReady(t *testing.T) {
	q := NewFinalizationQueue(4, 0)
	vm := &fakeVM{}
	require.NoError(t, q.Add(vm, "dead"))

	c := newFakeCollector() // nothing live

	q.Lock()
	q.scan(c, nil)
	q.Unlock()

	ready := q.drainReady()
	require.Len(t, ready, 1)
	require.Equal(t, "dead", ready[0].obj)

	// a second drain finds nothing left
	require.Empty(t, q.drainReady())
}

func TestFinalizerThread_PrefersDestroyableOverVMFinalize(t *testing.T) {
	ft := NewFinalizerThread(1, 4, 0, nil)
	vm := &fakeVM{}
	obj := &destroyableObj{}
	ft.finalizeOne(candidate{vm: vm, obj: obj})

	require.True(t, obj.destroyed)
	require.Empty(t, vm.finalized)
}

func TestFinalizerThread_FallsBackToVMFinalize(t *testing.T) {
	ft := NewFinalizerThread(1, 4, 0, nil)
	vm := &fakeVM{}
	ft.finalizeOne(candidate{vm: vm, obj: "plain"})

	require.Equal(t, []any{"plain"}, vm.finalized)
}

func TestFinalizerThread_RecoversPanicInFinalize(t *testing.T) {
	ft := NewFinalizerThread(1, 4, 0, nil)
	vm := &panickingVM{}
	require.NotPanics(t, func() {
		ft.finalizeOne(candidate{vm: vm, obj: "x"})
	})
}

type panickingVM struct{}

func (panickingVM) Finalize(any) { panic("boom") }
