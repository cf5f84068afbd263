package lifecycle_test

import (
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rainbow-me/platform-lifecycle/common/test"
	"github.com/rainbow-me/platform-lifecycle/lifecycle"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newCoordinator(t *testing.T, budget time.Duration, exited *atomic.Int32) *lifecycle.Coordinator {
	t.Helper()
	return lifecycle.New(budget,
		lifecycle.WithLogger(test.NewLogger(t)),
		lifecycle.WithExitFunc(func(int) {
			if exited != nil {
				exited.Add(1)
			}
		}),
	)
}

func TestHandleSignal_NotificationsIsolatedFromPanics(t *testing.T) {
	c := newCoordinator(t, time.Second, nil)

	var calls [3]atomic.Int32
	c.OnShutdown(func() { calls[0].Add(1) })
	c.OnShutdown(func() {
		calls[1].Add(1)
		panic("subsystem blew up")
	})
	// Registered after the panicking callback; must still be invoked.
	c.OnShutdown(func() { calls[2].Add(1) })

	c.HandleSignal(syscall.SIGTERM)

	for i := range calls {
		require.Equal(t, int32(1), calls[i].Load(), "callback %d invocation count", i)
	}
	require.True(t, c.IsShuttingDown())
}

func TestHandleSignal_RepeatSignalIsNoop(t *testing.T) {
	c := newCoordinator(t, time.Second, nil)

	var notified atomic.Int32
	var served atomic.Int32
	c.OnShutdown(func() { notified.Add(1) })
	c.SetServerShutdown(func() { served.Add(1) })

	c.HandleSignal(syscall.SIGTERM)
	c.HandleSignal(syscall.SIGTERM)

	require.Equal(t, int32(1), notified.Load())
	require.Equal(t, int32(1), served.Load())
}

func TestHandleSignal_GracefulPathInvokesServerShutdownOnce(t *testing.T) {
	var exited atomic.Int32
	c := newCoordinator(t, time.Second, &exited)

	var served atomic.Int32
	c.SetServerShutdown(func() { served.Add(1) })
	c.AddWaiter("instant", func(time.Duration) bool { return true })

	c.HandleSignal(syscall.SIGTERM)

	require.Equal(t, int32(1), served.Load())
	require.Zero(t, exited.Load(), "graceful path must not force-exit")
}

func TestHandleSignal_ServerShutdownLastRegistrationWins(t *testing.T) {
	c := newCoordinator(t, time.Second, nil)

	var first, second atomic.Int32
	c.SetServerShutdown(func() { first.Add(1) })
	c.SetServerShutdown(func() { second.Add(1) })

	c.HandleSignal(syscall.SIGTERM)

	require.Zero(t, first.Load())
	require.Equal(t, int32(1), second.Load())
}

func TestHandleSignal_BudgetSubtractionAndZeroClamp(t *testing.T) {
	var exited atomic.Int32
	c := newCoordinator(t, 200*time.Millisecond, &exited)

	// First waiter eats the whole budget and then some.
	c.AddWaiter("slow", func(timeout time.Duration) bool {
		time.Sleep(timeout + 150*time.Millisecond)
		return false
	})

	var lateTimeout atomic.Int64
	lateTimeout.Store(-1)
	start := time.Now()
	c.AddWaiter("late", func(timeout time.Duration) bool {
		lateTimeout.Store(int64(timeout))
		return timeout != 0 // with zero budget this reports not drained immediately
	})

	c.HandleSignal(syscall.SIGTERM)

	// The late waiter was still invoked, with a zero-clamped timeout, and did
	// not block the sequence.
	require.Equal(t, int64(0), lateTimeout.Load())
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, int32(1), exited.Load())

	results := c.DrainResults()
	require.Len(t, results, 2)
	require.Equal(t, "slow", results[0].Name)
	require.False(t, results[0].Ready)
	require.False(t, results[1].Ready)
}

func TestHandleSignal_WaiterPanicTreatedAsNotDrained(t *testing.T) {
	var exited atomic.Int32
	c := newCoordinator(t, time.Second, &exited)

	var nextRan atomic.Int32
	c.AddWaiter("broken", func(time.Duration) bool { panic("cond poisoned") })
	c.AddWaiter("next", func(time.Duration) bool {
		nextRan.Add(1)
		return true
	})

	var served atomic.Int32
	c.SetServerShutdown(func() { served.Add(1) })

	c.HandleSignal(syscall.SIGTERM)

	require.Equal(t, int32(1), nextRan.Load(), "sequence must proceed past a panicking waiter")
	require.Equal(t, int32(1), exited.Load(), "a panicked waiter counts as not drained")
	require.Zero(t, served.Load(), "forced-exit branch skips the polite server shutdown")
}

func TestHandleSignal_ForcedExitNearBudget(t *testing.T) {
	var exited atomic.Int32
	c := newCoordinator(t, time.Second, &exited)

	// Never becomes ready; honors the supplied timeout like a real drain wait.
	c.AddWaiter("stuck", func(timeout time.Duration) bool {
		time.Sleep(timeout)
		return false
	})

	start := time.Now()
	c.HandleSignal(syscall.SIGTERM)
	elapsed := time.Since(start)

	require.Equal(t, int32(1), exited.Load())
	require.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
	require.Less(t, elapsed, 3*time.Second)
}

func TestIsShuttingDown_FlipsBeforeWaitersRun(t *testing.T) {
	c := newCoordinator(t, time.Second, nil)

	require.False(t, c.IsShuttingDown())

	var seenDuringDrain atomic.Bool
	c.AddWaiter("probe", func(time.Duration) bool {
		seenDuringDrain.Store(c.IsShuttingDown())
		return true
	})

	c.HandleSignal(syscall.SIGTERM)

	require.True(t, seenDuringDrain.Load(), "readiness must flip before any waiter is polled")
	require.True(t, c.IsShuttingDown())
}

func TestWaiters_RunInRegistrationOrder(t *testing.T) {
	c := newCoordinator(t, time.Second, nil)

	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		c.AddWaiter(name, func(time.Duration) bool {
			order = append(order, name)
			return true
		})
	}

	c.HandleSignal(syscall.SIGTERM)

	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestNop_NeverShutsDown(t *testing.T) {
	var n lifecycle.Nop
	n.OnShutdown(func() { t.Fatal("must not be invoked") })
	n.AddWaiter("x", func(time.Duration) bool { return true })
	n.SetServerShutdown(func() {})
	require.False(t, n.IsShuttingDown())
}
