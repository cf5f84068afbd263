// Package periodic provides lightweight background loops that wind down
// opportunistically when shutdown begins: each registers only a notification
// callback with the coordinator, never a waiter, so they cannot block the
// drain.
package periodic

import (
	"sync"
	"time"

	"github.com/rainbow-me/platform-lifecycle/common/logger"
	"github.com/rainbow-me/platform-lifecycle/lifecycle"
)

// Runner invokes a function on a fixed interval until stopped. The shutdown
// notification interrupts the sleep immediately rather than letting the loop
// wait out its next scheduled tick.
type Runner struct {
	name     string
	interval time.Duration
	fn       func()
	log      *logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewRunner starts the loop and registers its stop hook with the coordinator.
func NewRunner(reg lifecycle.Registrar, name string, interval time.Duration, fn func(), log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Instance()
	}
	r := &Runner{
		name:     name,
		interval: interval,
		fn:       fn,
		log:      log.Named(name),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	reg.OnShutdown(r.Stop)
	go r.loop()

	return r
}

func (r *Runner) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.log.Info("Periodic loop stopping")
			return
		case <-ticker.C:
			r.runOnce()
		}
	}
}

func (r *Runner) runOnce() {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Periodic run panicked", logger.Any("panic", rec))
		}
	}()
	r.fn()
}

// Stop signals the loop to exit promptly. Safe to call multiple times and
// from the shutdown notification path.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
}

// Done is closed once the loop has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}
