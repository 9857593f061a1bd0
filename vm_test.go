package vmkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// launcherVM's RunApplicationImpl blocks until release is closed, so tests
// can observe the LauncherThread's non-daemon registration while it is
// still "running".
type launcherVM struct {
	*testVM
	release chan struct{}
	argv    []string
}

func (v *launcherVM) RunApplicationImpl(argv []string) error {
	v.argv = argv
	<-v.release
	return nil
}

func TestRunApplication_RegistersLauncherAsNonDaemon(t *testing.T) {
	vmk, _ := newTestVMKit(t)
	v := &launcherVM{testVM: newTestVM(), release: make(chan struct{})}

	appDone := make(chan error, 1)
	go func() { appDone <- RunApplication(vmk, v, []string{"app", "-x"}) }()

	waitDone := make(chan struct{})
	go func() {
		vmk.WaitNonDaemonThreads()
		close(waitDone)
	}()

	// RunApplicationImpl is still blocked: WaitNonDaemonThreads must not
	// return while the launcher thread it registered is still attached as
	// non-daemon (spec.md §4.6, scenario S6).
	select {
	case <-waitDone:
		t.Fatal("WaitNonDaemonThreads returned while RunApplicationImpl was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(v.release)

	select {
	case err := <-appDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunApplication never returned")
	}
	require.Equal(t, []string{"app", "-x"}, v.argv)

	select {
	case <-waitDone:
	case <-time.After(time.Second):
		t.Fatal("WaitNonDaemonThreads never returned after the launcher thread detached")
	}
}
