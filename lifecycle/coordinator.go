package lifecycle

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rainbow-me/platform-lifecycle/common/env"
	"github.com/rainbow-me/platform-lifecycle/common/logger"
)

// DefaultGracefulTimeout bounds the total drain budget when none is
// configured. It is deliberately generous to accommodate long-running units
// of work.
const DefaultGracefulTimeout = 5 * time.Minute

type namedWaiter struct {
	name string
	wait WaiterFunc
}

// WaiterResult records the outcome of a single waiter during phase 2.
type WaiterResult struct {
	Name     string
	Ready    bool
	Duration time.Duration
}

// Coordinator owns the shutdown state, the callback registries and the phased
// drain algorithm. One instance exists per process.
type Coordinator struct {
	budget time.Duration
	log    *logger.Logger
	exitFn func(code int)

	// shuttingDown is read on every inbound request's readiness check, so it
	// must not contend with mu.
	shuttingDown atomic.Bool

	mu             sync.Mutex
	notifications  []NotificationFunc
	waiters        []namedWaiter
	serverShutdown func()
	results        []WaiterResult
	startedAt      time.Time

	sigCh chan os.Signal
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Defaults to the process-wide instance.
func WithLogger(log *logger.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithExitFunc overrides the forced-exit call. Tests use this to observe the
// forced-exit branch without terminating the test binary.
func WithExitFunc(fn func(code int)) Option {
	return func(c *Coordinator) {
		c.exitFn = fn
	}
}

// New builds a Coordinator with the given total graceful-shutdown budget.
// A non-positive budget falls back to DefaultGracefulTimeout.
func New(budget time.Duration, opts ...Option) *Coordinator {
	if budget <= 0 {
		budget = DefaultGracefulTimeout
	}
	c := &Coordinator{
		budget: budget,
		exitFn: os.Exit,
		sigCh:  make(chan os.Signal, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Instance()
	}
	return c
}

// OnShutdown implements Registrar.
func (c *Coordinator) OnShutdown(fn NotificationFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append(c.notifications, fn)
}

// AddWaiter implements Registrar.
func (c *Coordinator) AddWaiter(name string, fn WaiterFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waiters = append(c.waiters, namedWaiter{name: name, wait: fn})
}

// SetServerShutdown implements Registrar.
func (c *Coordinator) SetServerShutdown(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverShutdown = fn
}

// IsShuttingDown implements Registrar.
func (c *Coordinator) IsShuttingDown() bool {
	return c.shuttingDown.Load()
}

// DefaultSignals returns the signals the coordinator should handle: SIGTERM
// always, plus SIGINT outside production so local runs stop on Ctrl-C.
func DefaultSignals() []os.Signal {
	sigs := []os.Signal{syscall.SIGTERM}
	if !env.IsProductionApplicationEnv() {
		sigs = append(sigs, os.Interrupt)
	}
	return sigs
}

// Install registers the coordinator's handler for the given signals and
// starts the delivery goroutine. Must be called before the server begins
// serving. With no arguments it installs DefaultSignals.
func (c *Coordinator) Install(sigs ...os.Signal) {
	if len(sigs) == 0 {
		sigs = DefaultSignals()
	}
	signal.Notify(c.sigCh, sigs...)

	go func() {
		for sig := range c.sigCh {
			c.HandleSignal(sig)
		}
	}()
}

// HandleSignal runs the entire three-phase sequence synchronously. It is the
// single entry point invoked on signal receipt; no code is expected to run
// after it in the terminating process. A repeat signal is a no-op.
func (c *Coordinator) HandleSignal(sig os.Signal) {
	if !c.notify(sig) {
		return
	}
	drained := c.waitForDrain()
	c.terminate(drained)
}

// notify is phase 1: flip the state exactly once and tell every subsystem to
// stop admitting new work before anyone starts waiting, otherwise new work
// could extend the drain indefinitely. Returns false on a repeat signal.
func (c *Coordinator) notify(sig os.Signal) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.shuttingDown.CompareAndSwap(false, true) {
		c.log.Warn("Shutdown already in progress, ignoring signal",
			logger.String("signal", sig.String()))
		return false
	}
	c.startedAt = time.Now()

	c.log.Info("Shutdown signal received, notifying subsystems",
		logger.String("signal", sig.String()),
		logger.Int("notifications", len(c.notifications)),
		logger.Duration("budget", c.budget))

	for i, fn := range c.notifications {
		c.runNotification(i, fn)
	}
	return true
}

// runNotification isolates a single callback so one panicking subsystem
// cannot suppress notification to the others.
func (c *Coordinator) runNotification(idx int, fn NotificationFunc) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Shutdown notification panicked",
				logger.Int("index", idx),
				logger.Any("panic", r))
		}
	}()
	fn()
}

// waitForDrain is phase 2: poll every waiter strictly sequentially against
// one shrinking budget. mu is held only for the registry snapshot, not while
// a waiter blocks.
func (c *Coordinator) waitForDrain() bool {
	c.mu.Lock()
	waiters := make([]namedWaiter, len(c.waiters))
	copy(waiters, c.waiters)
	c.mu.Unlock()

	drained := true
	results := make([]WaiterResult, 0, len(waiters))

	for _, w := range waiters {
		remaining := c.remaining()
		start := time.Now()
		ready := c.runWaiter(w, remaining)
		took := time.Since(start)

		results = append(results, WaiterResult{Name: w.name, Ready: ready, Duration: took})

		if ready {
			c.log.Info("Subsystem drained",
				logger.String("waiter", w.name),
				logger.Duration("took", took))
		} else {
			drained = false
			c.log.Error("Subsystem did not drain within its slice",
				logger.String("waiter", w.name),
				logger.Duration("allowed", remaining),
				logger.Duration("took", took))
		}
	}

	c.mu.Lock()
	c.results = results
	c.mu.Unlock()
	return drained
}

// runWaiter treats a panicking handler as not drained rather than aborting
// the sequence; the next waiter still runs with whatever budget remains.
func (c *Coordinator) runWaiter(w namedWaiter, timeout time.Duration) (ready bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Shutdown waiter panicked, treating as not drained",
				logger.String("waiter", w.name),
				logger.Any("panic", r))
			ready = false
		}
	}()
	return w.wait(timeout)
}

// remaining returns the unspent part of the budget, clamped at zero so late
// waiters are still invoked but cannot block.
func (c *Coordinator) remaining() time.Duration {
	remaining := c.budget - time.Since(c.startedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// terminate is phase 3. A fully drained process stops its server politely and
// returns through the normal runtime exit path; an exhausted budget forces
// immediate termination instead, dropping whatever is still in flight.
func (c *Coordinator) terminate(drained bool) {
	elapsed := time.Since(c.startedAt)

	if !drained {
		c.log.Error("Graceful-shutdown budget exhausted, forcing exit",
			logger.Duration("elapsed", elapsed))
		c.exitFn(1)
		return // reachable only with an injected exit func
	}

	c.mu.Lock()
	stop := c.serverShutdown
	c.mu.Unlock()

	if stop != nil {
		c.runServerShutdown(stop)
	}

	c.log.Info("Graceful shutdown complete",
		logger.Duration("elapsed", elapsed))
}

func (c *Coordinator) runServerShutdown(stop func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Server shutdown callback panicked", logger.Any("panic", r))
		}
	}()
	stop()
}

// DrainResults reports the per-waiter outcomes of the last (only) shutdown
// sequence. Empty before shutdown.
func (c *Coordinator) DrainResults() []WaiterResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]WaiterResult, len(c.results))
	copy(out, c.results)
	return out
}

var _ Registrar = (*Coordinator)(nil)
