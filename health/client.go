package health

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// checkerConfig holds the configuration for creating a health checker.
type checkerConfig struct {
	target      string
	dialTimeout time.Duration
	dialOptions []grpc.DialOption
}

// CheckerOption is a functional option for configuring the health checker.
type CheckerOption func(*checkerConfig)

// WithTarget sets the target address for the gRPC connection (e.g., "localhost:9091").
func WithTarget(target string) CheckerOption {
	return func(c *checkerConfig) {
		c.target = target
	}
}

// WithDialOptions allows passing custom gRPC DialOptions.
func WithDialOptions(opts ...grpc.DialOption) CheckerOption {
	return func(c *checkerConfig) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// Checker is a wrapper around the gRPC health client that manages the
// underlying connection. Deployment tooling uses it to confirm the health
// listener flipped to NOT_SERVING during a drain.
type Checker struct {
	client grpc_health_v1.HealthClient
	conn   *grpc.ClientConn
}

// Check performs a health check on the specified service.
func (h *Checker) Check(
	ctx context.Context,
	req *grpc_health_v1.HealthCheckRequest,
	opts ...grpc.CallOption,
) (*grpc_health_v1.HealthCheckResponse, error) {
	return h.client.Check(ctx, req, opts...)
}

// Watch watches the health status of the specified service.
func (h *Checker) Watch(
	ctx context.Context,
	req *grpc_health_v1.HealthCheckRequest,
	opts ...grpc.CallOption,
) (grpc_health_v1.Health_WatchClient, error) {
	return h.client.Watch(ctx, req, opts...)
}

// Close closes the underlying gRPC connection.
func (h *Checker) Close() error {
	if h.conn != nil {
		return h.conn.Close()
	}
	return nil
}

// NewChecker creates a health checker with the provided functional options.
// The caller should Close() when done, typically with defer.
// Default target is "localhost:9091", insecure, and a 10s dial timeout.
func NewChecker(opts ...CheckerOption) (*Checker, error) {
	c := &checkerConfig{
		target:      "localhost:9091",
		dialTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.target == "" {
		return nil, errors.New("target address is required")
	}

	dialOpts := c.dialOptions

	// set insecure credentials if none provided
	dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))

	// Set connect parameters with the dial timeout
	connectParams := grpc.ConnectParams{
		Backoff:           backoff.DefaultConfig,
		MinConnectTimeout: c.dialTimeout,
	}
	dialOpts = append(dialOpts, grpc.WithConnectParams(connectParams))

	conn, err := grpc.NewClient(c.target, dialOpts...)
	if err != nil {
		return nil, err
	}

	client := grpc_health_v1.NewHealthClient(conn)

	return &Checker{client: client, conn: conn}, nil
}
