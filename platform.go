package vmkit

import (
	"runtime"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/pbnjay/memory"
	"go.uber.org/automaxprocs/maxprocs"
)

// setupRuntime resolves GOMAXPROCS to the container-aware CPU quota before a
// VMKit sizes its default worker pool (spec.md §9 "host environment
// awareness"): a substrate that spins up OS-thread-backed mutators needs the
// real CPU budget, not the host machine's. Failure (no cgroup, bare metal)
// is silently ignored; GOMAXPROCS simply keeps its runtime default.
func setupRuntime() {
	_, _ = maxprocs.Set()
}

// detectMemoryLimit reports the container/cgroup memory limit in bytes via
// automemlimit's cgroup provider, falling back to pbnjay/memory's
// total-system-memory reading when no cgroup limit is visible (a bare-metal
// or dev host) - the same fallback automemlimit itself recommends for
// environments outside a container.
func detectMemoryLimit() uint64 {
	if limit, err := memlimit.FromCgroup(); err == nil && limit > 0 {
		return limit
	}
	return memory.TotalMemory()
}

// applyGoMemLimit sets GOMEMLIMIT from the detected container/cgroup limit,
// via automemlimit's own setter, for hosts that opt in with
// WithAutoMemLimit (config.go) rather than manage GOMEMLIMIT themselves.
func applyGoMemLimit() {
	_, _ = memlimit.SetGoMemLimitWithOpts(memlimit.WithProvider(memlimit.FromCgroup))
}

// heapUsageRatio reports the process's current heap size as a fraction of
// limit, used to decide whether a queue-growth warning should fire ahead of
// the hard fatal-OOM policy in spec.md §7.
func heapUsageRatio(limit uint64) float64 {
	if limit == 0 {
		return 0
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return float64(stats.HeapAlloc) / float64(limit)
}
