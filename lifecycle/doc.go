// Package lifecycle coordinates graceful process shutdown.
//
// A single Coordinator is constructed at startup and passed into every
// collaborating subsystem's constructor. Collaborators register one or both
// of two narrow hooks:
//
//   - a notification callback, invoked once when shutdown begins, used to
//     stop admitting new work;
//   - a named waiter, a timeout-bounded blocking hook invoked to await
//     completion of work already in flight.
//
// When the termination signal arrives the Coordinator runs three phases
// synchronously on the signal-handling goroutine:
//
//  1. Notify: flip the state flag (exactly once per process) and invoke every
//     notification callback in registration order, isolating panics so one
//     failing subsystem cannot suppress notification to the others.
//  2. Wait: invoke every waiter sequentially in registration order. All
//     waiters share one shrinking budget; a slow first waiter reduces the
//     time available to later ones, and a waiter reached after the budget is
//     spent still runs with a zero-clamped timeout.
//  3. Terminate: if every waiter drained, invoke the registered
//     server-shutdown callback and return through the normal runtime path.
//     If any waiter timed out, force process exit immediately; nothing runs
//     past the grace period.
//
// Readiness probes should report not-ready the instant phase 1 begins; the
// IsShuttingDown read is lock-free so it can sit on the hot path of every
// inbound request.
package lifecycle
