package lifecycle

import "time"

// NotificationFunc is a fire-and-forget hook invoked once shutdown begins.
// Implementations should flip their own "stop admitting" flag and return
// quickly; blocking work belongs in a waiter.
type NotificationFunc func()

// WaiterFunc blocks until the collaborator's in-flight work has drained or
// the supplied timeout elapses, and reports whether it drained in time.
type WaiterFunc func(timeout time.Duration) bool

// Registrar is the registration surface collaborators depend on. Production
// code passes the Coordinator; tests can pass a Nop so constructors never
// install real signal handlers.
type Registrar interface {
	// OnShutdown appends a notification callback. Callbacks are invoked in
	// registration order; duplicates are not deduplicated.
	OnShutdown(fn NotificationFunc)

	// AddWaiter appends a named waiter. Registration order is wait order.
	AddWaiter(name string, fn WaiterFunc)

	// SetServerShutdown stores the single server-termination hook.
	// Re-registering overwrites the previous hook.
	SetServerShutdown(fn func())

	// IsShuttingDown reports whether shutdown has begun. Lock-free.
	IsShuttingDown() bool
}

// Nop is a Registrar that records nothing and never shuts down. It exists so
// collaborator constructors can be exercised in tests without a live
// coordinator.
type Nop struct{}

func (Nop) OnShutdown(NotificationFunc)  {}
func (Nop) AddWaiter(string, WaiterFunc) {}
func (Nop) SetServerShutdown(func())     {}
func (Nop) IsShuttingDown() bool         { return false }

var _ Registrar = Nop{}
