package vmkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNonDaemonThreadManager_WaitReturnsImmediatelyWhenEmpty(t *testing.T) {
	var m NonDaemonThreadManager
	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked with no non-daemon threads ever entered")
	}
}

func TestNonDaemonThreadManager_WaitBlocksUntilAllLeave(t *testing.T) {
	var m NonDaemonThreadManager
	m.Enter()
	m.Enter()

	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before all non-daemon threads left")
	case <-time.After(50 * time.Millisecond):
	}

	m.Leave()
	select {
	case <-done:
		t.Fatal("Wait returned before all non-daemon threads left")
	case <-time.After(50 * time.Millisecond):
	}

	m.Leave()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait never returned after the last non-daemon thread left")
	}
}

func TestNonDaemonThreadManager_ConcurrentWaiters(t *testing.T) {
	var m NonDaemonThreadManager
	m.Enter()

	const waiters = 5
	done := make(chan struct{}, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			m.Wait()
			done <- struct{}{}
		}()
	}

	require.Never(t, func() bool { return len(done) == waiters }, 50*time.Millisecond, 5*time.Millisecond)

	m.Leave()

	for i := 0; i < waiters; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("not every waiter woke up")
		}
	}
}
