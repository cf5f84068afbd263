// Package executor runs submitted units of work on a bounded worker pool and
// cooperates with the lifecycle coordinator: it stops admitting work the
// moment shutdown begins and lets the coordinator await the drain of whatever
// is already in flight.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/rainbow-me/platform-lifecycle/common/logger"
	"github.com/rainbow-me/platform-lifecycle/lifecycle"
)

// ErrShuttingDown is returned by Submit once shutdown has begun. Work is
// rejected rather than silently queued.
var ErrShuttingDown = errors.New("executor: shutting down, not accepting new work")

// ErrQueueFull is returned by Submit when the task queue is at capacity.
var ErrQueueFull = errors.New("executor: task queue full")

// Task is a unit of work. The context is the pool's base context; it is
// cancelled by Close once the grace period is over.
type Task func(ctx context.Context) error

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	InFlight  int
	Completed uint64
	Rejected  uint64
}

// Executor is a fixed-size worker pool.
type Executor struct {
	log   *logger.Logger
	tasks chan submission

	baseCtx context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup

	mu        sync.Mutex
	drainCond *sync.Cond
	draining  bool
	inFlight  int
	completed uint64
	rejected  uint64
}

type submission struct {
	id   string
	task Task
}

// Config sizes the pool.
type Config struct {
	Workers   int
	QueueSize int
}

// New builds the pool, starts its workers, and registers against the
// coordinator: a notification callback that closes admission and a waiter
// that blocks until in-flight work reaches zero.
func New(reg lifecycle.Registrar, cfg Config, log *logger.Logger) *Executor {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if log == nil {
		log = logger.Instance()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		log:     log.Named("executor"),
		tasks:   make(chan submission, cfg.QueueSize),
		baseCtx: ctx,
		cancel:  cancel,
	}
	e.drainCond = sync.NewCond(&e.mu)

	for i := 0; i < cfg.Workers; i++ {
		e.workers.Add(1)
		go e.worker()
	}

	reg.OnShutdown(e.stopAdmitting)
	reg.AddWaiter("task-executor", e.awaitDrain)

	return e
}

// Submit enqueues a task. Queued tasks count as in flight immediately so the
// drain waiter cannot report ready while work is still sitting in the queue.
func (e *Executor) Submit(task Task) (string, error) {
	e.mu.Lock()
	if e.draining {
		e.rejected++
		e.mu.Unlock()
		return "", ErrShuttingDown
	}
	e.inFlight++
	e.mu.Unlock()

	id := uuid.NewString()
	select {
	case e.tasks <- submission{id: id, task: task}:
		return id, nil
	default:
		e.mu.Lock()
		e.inFlight--
		e.rejected++
		if e.inFlight == 0 && e.draining {
			e.drainCond.Broadcast()
		}
		e.mu.Unlock()
		return "", errors.Wrapf(ErrQueueFull, "capacity %d", cap(e.tasks))
	}
}

func (e *Executor) worker() {
	defer e.workers.Done()
	for {
		select {
		case <-e.baseCtx.Done():
			return
		case s := <-e.tasks:
			e.run(s)
		}
	}
}

func (e *Executor) run(s submission) {
	defer e.taskDone()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Task panicked",
				logger.String("task_id", s.id),
				logger.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := s.task(e.baseCtx); err != nil {
		e.log.Warn("Task failed",
			logger.String("task_id", s.id),
			logger.Duration("took", time.Since(start)),
			logger.Error(err))
		return
	}
	e.log.Debug("Task completed",
		logger.String("task_id", s.id),
		logger.Duration("took", time.Since(start)))
}

// taskDone decrements the in-flight count and, when the last unit completes
// while draining, wakes the coordinator's wait so phase 2 can unblock before
// its full slice elapses.
func (e *Executor) taskDone() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight--
	e.completed++
	if e.inFlight == 0 && e.draining {
		e.drainCond.Broadcast()
	}
}

func (e *Executor) stopAdmitting() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draining = true
	e.log.Info("Executor closed to new work", logger.Int("in_flight", e.inFlight))
}

// awaitDrain reports true when the in-flight count reaches zero within the
// timeout. Zero in flight returns ready immediately regardless of timeout.
func (e *Executor) awaitDrain(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	e.mu.Lock()
	defer e.mu.Unlock()

	for e.inFlight > 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		// sync.Cond has no timed wait; a timer goroutine broadcasts so the
		// wait below cannot outlive the deadline.
		timer := time.AfterFunc(remaining, e.drainCond.Broadcast)
		e.drainCond.Wait()
		timer.Stop()
	}
	return true
}

// Stats returns a snapshot of pool activity for the metrics reporter.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{InFlight: e.inFlight, Completed: e.completed, Rejected: e.rejected}
}

// Close is the terminal cleanup entry point, independent of the coordinator:
// it force-cancels anything still outstanding and releases the workers. The
// context bounds how long Close waits for workers to observe the cancel.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	e.draining = true
	e.mu.Unlock()

	e.cancel()

	done := make(chan struct{})
	go func() {
		e.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "executor: workers did not release in time")
	}
}
