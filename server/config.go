// Package server provides the two serving adapters that realize "stop
// serving" for the lifecycle coordinator: a single-process development server
// that can only stop itself from inside a live request, and a production
// server whose listening handle is captured at startup so it can be closed
// directly. The coordinator is agnostic to which adapter is present; each
// registers exactly one server-shutdown callback.
package server

import (
	"net/http"
	"time"
)

var (
	DefaultHTTPReadTimeout   = 5 * time.Second
	DefaultHTTPWriteTimeout  = 10 * time.Second
	DefaultHTTPIdleTimeout   = 120 * time.Second
	DefaultHTTPHeaderTimeout = 2 * time.Second

	// DefaultLoopbackTimeout bounds the development adapter's loopback
	// shutdown call before it falls back to closing the server directly.
	DefaultLoopbackTimeout = 5 * time.Second
)

// Config holds the settings shared by both adapters.
type Config struct {
	Name          string        // Unique name for this server (used in logging)
	Address       string        // Address to bind to (e.g., ":8080")
	ReadTimeout   time.Duration // Maximum duration for reading the entire request
	WriteTimeout  time.Duration // Maximum duration before timing out writes
	IdleTimeout   time.Duration // Maximum amount of time to wait for the next request when keep-alives are enabled
	HeaderTimeout time.Duration // Amount of time allowed to read request headers

	// GRPCHealthAddress optionally enables the standalone gRPC health
	// listener (production adapter only). Empty disables it.
	GRPCHealthAddress string
}

// Option is a functional option for configuring a server Config.
type Option func(*Config)

// WithReadTimeout sets the read timeout.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.ReadTimeout = timeout
	}
}

// WithWriteTimeout sets the write timeout.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.WriteTimeout = timeout
	}
}

// WithIdleTimeout sets the idle timeout.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.IdleTimeout = timeout
	}
}

// WithHeaderTimeout sets the header timeout.
func WithHeaderTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.HeaderTimeout = timeout
	}
}

// WithGRPCHealthAddress enables the production adapter's gRPC health listener.
func WithGRPCHealthAddress(address string) Option {
	return func(c *Config) {
		c.GRPCHealthAddress = address
	}
}

func newConfig(name, address string, opts ...Option) Config {
	cfg := Config{
		Name:          name,
		Address:       address,
		ReadTimeout:   DefaultHTTPReadTimeout,
		WriteTimeout:  DefaultHTTPWriteTimeout,
		IdleTimeout:   DefaultHTTPIdleTimeout,
		HeaderTimeout: DefaultHTTPHeaderTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c Config) httpServer(handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              c.Address,
		Handler:           handler,
		ReadTimeout:       c.ReadTimeout,
		WriteTimeout:      c.WriteTimeout,
		IdleTimeout:       c.IdleTimeout,
		ReadHeaderTimeout: c.HeaderTimeout,
	}
}
