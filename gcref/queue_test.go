package gcref

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmkit-go/vmkit/collector"
)

// fakeVM is a minimal gcref.VM used by queue/thread tests: a reference
// object is just a *fakeRef, and the referent slot lives on it directly.
type fakeVM struct {
	enqueued []any
}

func (f *fakeVM) GetReferent(ref any) any           { return ref.(*fakeRef).referent }
func (f *fakeVM) SetReferent(ref any, referent any) { ref.(*fakeRef).referent = referent }
func (f *fakeVM) EnqueueReference(ref any)          { f.enqueued = append(f.enqueued, ref) }

type fakeRef struct {
	name     string
	referent any
}

// fakeCollector is a trivial, non-moving Collector: liveness is whatever
// the test puts in the live set, forwarding is the identity.
type fakeCollector struct {
	live map[any]bool
}

func newFakeCollector() *fakeCollector { return &fakeCollector{live: map[any]bool{}} }

func (c *fakeCollector) IsLive(obj any, _ collector.Closure) bool             { return c.live[obj] }
func (c *fakeCollector) GetForwardedReference(r any, _ collector.Closure) any { return r }
func (c *fakeCollector) GetForwardedReferent(e any, _ collector.Closure) any  { return e }
func (c *fakeCollector) RetainReferent(any, collector.Closure)                {}

func TestReferenceQueue_AddAndLen(t *testing.T) {
	q := NewReferenceQueue(Weak, 4, 0)
	vm := &fakeVM{}
	require.Equal(t, 0, q.Len())
	require.NoError(t, q.AddReference(vm, &fakeRef{name: "a"}))
	require.Equal(t, 1, q.Len())
	require.Equal(t, Weak, q.Semantics())
}

func TestReferenceQueue_AddReference_Overflow(t *testing.T) {
	q := NewReferenceQueue(Weak, 1, 1)
	vm := &fakeVM{}
	require.NoError(t, q.AddReference(vm, &fakeRef{name: "a"}))
	err := q.AddReference(vm, &fakeRef{name: "b"})
	require.ErrorIs(t, err, ErrQueueOverflow)
}

func TestReferenceQueue_Scan_DropsWhenReferenceObjectDead(t *testing.T) {
	q := NewReferenceQueue(Weak, 4, 0)
	vm := &fakeVM{}
	referent := "payload"
	ref := &fakeRef{name: "r", referent: referent}
	require.NoError(t, q.AddReference(vm, ref))

	c := newFakeCollector() // ref itself is not live
	var toEnqueue []entry
	q.Lock()
	q.scan(c, nil, &toEnqueue)
	q.Unlock()

	require.Equal(t, 0, q.Len())
	require.Empty(t, toEnqueue)
	require.Nil(t, ref.referent)
}

func TestReferenceQueue_Scan_KeepsWhenReferentLive(t *testing.T) {
	q := NewReferenceQueue(Weak, 4, 0)
	vm := &fakeVM{}
	referent := "payload"
	ref := &fakeRef{name: "r", referent: referent}
	require.NoError(t, q.AddReference(vm, ref))

	c := newFakeCollector()
	c.live[ref] = true
	c.live[referent] = true

	var toEnqueue []entry
	q.Lock()
	q.scan(c, nil, &toEnqueue)
	q.Unlock()

	require.Equal(t, 1, q.Len())
	require.Empty(t, toEnqueue)
	require.Equal(t, referent, ref.referent)
}

func TestReferenceQueue_Scan_ClearsAndEnqueuesWhenReferentDead(t *testing.T) {
	q := NewReferenceQueue(Weak, 4, 0)
	vm := &fakeVM{}
	referent := "payload"
	ref := &fakeRef{name: "r", referent: referent}
	require.NoError(t, q.AddReference(vm, ref))

	c := newFakeCollector()
	c.live[ref] = true // the reference object survives; its referent does not

	var toEnqueue []entry
	q.Lock()
	q.scan(c, nil, &toEnqueue)
	q.Unlock()

	require.Equal(t, 0, q.Len())
	require.Len(t, toEnqueue, 1)
	require.Nil(t, ref.referent)
	require.Same(t, ref, toEnqueue[0].ref)
}

func TestReferenceQueue_Scan_SoftRetainsReferent(t *testing.T) {
	q := NewReferenceQueue(Soft, 4, 0)
	vm := &fakeVM{}
	referent := "payload"
	ref := &fakeRef{name: "r", referent: referent}
	require.NoError(t, q.AddReference(vm, ref))

	var retained []any
	c := &retainTrackingCollector{fakeCollector: newFakeCollector(), retained: &retained}
	c.live[ref] = true
	c.live[referent] = false // dead, but Soft gets RetainReferent called first

	var toEnqueue []entry
	q.Lock()
	q.scan(c, nil, &toEnqueue)
	q.Unlock()

	require.Equal(t, []any{referent}, retained)
}

type retainTrackingCollector struct {
	*fakeCollector
	retained *[]any
}

func (c *retainTrackingCollector) RetainReferent(e any, _ collector.Closure) {
	*c.retained = append(*c.retained, e)
}
