package vmkit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecursiveMonitor_RecursiveLockUnlock(t *testing.T) {
	m := NewRecursiveMonitor()
	self := &Thread{id: 1}

	m.Lock(self)
	m.Lock(self) // recursive: same owner, depth 2
	require.NoError(t, m.Unlock(self))
	require.NoError(t, m.Unlock(self))

	// fully released: a different thread can now take it.
	other := &Thread{id: 2}
	done := make(chan struct{})
	go func() {
		m.Lock(other)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second thread never acquired the released monitor")
	}
	require.NoError(t, m.Unlock(other))
}

func TestRecursiveMonitor_UnlockWithoutOwnershipIsIllegal(t *testing.T) {
	m := NewRecursiveMonitor()
	self := &Thread{id: 1}
	err := m.Unlock(self)
	var ims *IllegalMonitorStateError
	require.ErrorAs(t, err, &ims)
}

func TestRecursiveMonitor_WaitNotify(t *testing.T) {
	m := NewRecursiveMonitor()
	waiter := &Thread{id: 1}
	notifier := &Thread{id: 2}

	m.Lock(waiter)
	waitDone := make(chan error, 1)
	go func() {
		waitDone <- m.Wait(waiter, 0)
	}()

	// give Wait a chance to park and release the lock
	require.Eventually(t, func() bool {
		m.Lock(notifier)
		locked := true
		_ = m.Unlock(notifier)
		return locked
	}, time.Second, time.Millisecond)

	m.Lock(notifier)
	require.NoError(t, m.Notify(notifier))
	require.NoError(t, m.Unlock(notifier))

	select {
	case err := <-waitDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait never woke up after Notify")
	}
}

func TestRecursiveMonitor_WaitTimesOut(t *testing.T) {
	m := NewRecursiveMonitor()
	self := &Thread{id: 1}
	m.Lock(self)
	start := time.Now()
	err := m.Wait(self, 20*time.Millisecond)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	require.NoError(t, m.Unlock(self))
}

func TestRecursiveMonitor_InterruptWakesWait(t *testing.T) {
	m := NewRecursiveMonitor()
	self := &Thread{id: 1}
	m.Lock(self)

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- m.Wait(self, 0)
	}()

	require.Eventually(t, func() bool {
		self.interruptMu.Lock()
		has := self.waitCond != nil
		self.interruptMu.Unlock()
		return has
	}, time.Second, time.Millisecond)

	self.Interrupt()

	select {
	case err := <-waitDone:
		var ie *InterruptedError
		require.ErrorAs(t, err, &ie)
	case <-time.After(time.Second):
		t.Fatal("Interrupt did not wake the parked Wait")
	}
}

func TestRecursiveMonitor_NotifyAllWakesEveryWaiter(t *testing.T) {
	m := NewRecursiveMonitor()
	const n = 3
	var wg sync.WaitGroup
	results := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		waiter := &Thread{id: int64(i + 1)}
		go func() {
			defer wg.Done()
			m.Lock(waiter)
			results <- m.Wait(waiter, 0)
			_ = m.Unlock(waiter)
		}()
	}

	notifier := &Thread{id: 100}
	require.Eventually(t, func() bool {
		m.Lock(notifier)
		_ = m.Unlock(notifier)
		return true
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond) // let all three actually park

	m.Lock(notifier)
	require.NoError(t, m.NotifyAll(notifier))
	require.NoError(t, m.Unlock(notifier))

	wg.Wait()
	close(results)
	for err := range results {
		require.NoError(t, err)
	}
}
