package vmkit

import (
	"runtime"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/vmkit-go/vmkit/collector"
	"github.com/vmkit-go/vmkit/rendezvous"
)

type (
	// Config configures a VMKit instance. The zero value is not usable;
	// construct one with defaultConfig and apply Options, or just call
	// New(collector.Collector, ...Option).
	Config struct {
		logger            *Logger
		rendezvousKind    rendezvous.Strategy
		workerConcurrency int
		memWarnRatio      float64
		queueInitCapacity int
		closureFactory    func() collector.Closure
		autoMemLimit      bool
	}

	// Option configures a Config, in the style of the teacher corpus's
	// functional-options types (microbatch.BatcherConfig, eventloop.Option).
	Option func(c *Config)
)

// defaultConfig returns the Config New uses when no options override it.
// GOMAXPROCS is resolved (via automaxprocs, see platform.go) before this is
// called, so WorkerConcurrency already reflects the container CPU quota.
func defaultConfig() Config {
	return Config{
		logger:            defaultLogger(logiface.LevelInformational),
		rendezvousKind:    rendezvous.Cooperative,
		workerConcurrency: max(1, runtime.GOMAXPROCS(0)),
		memWarnRatio:      0.8,
		queueInitCapacity: 256, // INITIAL_QUEUE_SIZE, see gcref/finalizer
		closureFactory:    func() collector.Closure { return nil },
	}
}

// WithLogger overrides the structured logger used for VM registration,
// collection, queue, reference-worker and finalizer-worker diagnostics. A nil
// logger disables logging entirely.
func WithLogger(logger *Logger) Option {
	return func(c *Config) { c.logger = logger }
}

// WithRendezvousStrategy selects the cooperative or uncooperative
// stop-the-world strategy. The choice is fixed for the VMKit's lifetime
// (spec.md §4.1): it cannot be changed after New returns.
func WithRendezvousStrategy(kind rendezvous.Strategy) Option {
	return func(c *Config) { c.rendezvousKind = kind }
}

// WithWorkerConcurrency bounds how many enqueue/finalize callbacks the
// reference and finalizer workers may run concurrently while draining a
// burst. Defaults to runtime.GOMAXPROCS(0).
func WithWorkerConcurrency(n int) Option {
	if n <= 0 {
		panic("vmkit: WithWorkerConcurrency requires a positive value")
	}
	return func(c *Config) { c.workerConcurrency = n }
}

// WithMemoryWarningRatio sets the fraction (0, 1] of the detected memory
// limit (see platform.go) at which growing a reference/finalization queue
// logs a warning ahead of the hard fatal-OOM policy in spec.md §7.
func WithMemoryWarningRatio(ratio float64) Option {
	if ratio <= 0 || ratio > 1 {
		panic("vmkit: WithMemoryWarningRatio requires a ratio in (0, 1]")
	}
	return func(c *Config) { c.memWarnRatio = ratio }
}

// WithQueueInitialCapacity overrides the initial capacity used for
// ReferenceQueue/FinalizationQueue growth (INITIAL_QUEUE_SIZE upstream).
func WithQueueInitialCapacity(n int) Option {
	if n <= 0 {
		panic("vmkit: WithQueueInitialCapacity requires a positive value")
	}
	return func(c *Config) { c.queueInitCapacity = n }
}

// WithAutoMemLimit makes New apply GOMEMLIMIT from the detected
// container/cgroup memory limit (see platform.go), via automemlimit.
// Disabled by default: vmkit is typically embedded in a larger host process
// that already manages GOMEMLIMIT, and a substrate library should not fight
// it for that setting.
func WithAutoMemLimit() Option {
	return func(c *Config) { c.autoMemLimit = true }
}

// WithClosureFactory overrides how vmkit produces the collector.Closure
// passed to every Tracer/scan call in a single collection cycle. Defaults to
// a factory that always returns nil, which is correct for collectors that
// thread their per-cycle state some other way (e.g. through the Collector
// value itself); collectors that need a fresh per-cycle token should supply
// one here.
func WithClosureFactory(f func() collector.Closure) Option {
	if f == nil {
		panic("vmkit: WithClosureFactory requires a non-nil factory")
	}
	return func(c *Config) { c.closureFactory = f }
}

// mustPositiveDuration panics on a non-positive duration, in the same
// validate-on-construction convention as the Option constructors above
// (matching longpoll.ChannelConfig). No Option in this file takes a
// time.Duration, so nothing calls it at present.
func mustPositiveDuration(name string, d time.Duration) {
	if d <= 0 {
		panic("vmkit: " + name + " must be positive")
	}
}

// collectorOrPanic validates the collector passed to New.
func collectorOrPanic(c collector.Collector) collector.Collector {
	if c == nil {
		panic(ErrNilCollector)
	}
	return c
}
