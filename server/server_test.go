package server_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rainbow-me/platform-lifecycle/common/env"
	"github.com/rainbow-me/platform-lifecycle/common/test"
	"github.com/rainbow-me/platform-lifecycle/executor"
	"github.com/rainbow-me/platform-lifecycle/health"
	"github.com/rainbow-me/platform-lifecycle/lifecycle"
	"github.com/rainbow-me/platform-lifecycle/server"
)

func newCoordinator(t *testing.T, exited *atomic.Int32) *lifecycle.Coordinator {
	t.Helper()
	return lifecycle.New(5*time.Second,
		lifecycle.WithLogger(test.NewLogger(t)),
		lifecycle.WithExitFunc(func(int) {
			if exited != nil {
				exited.Add(1)
			}
		}),
	)
}

// startDev runs the dev adapter on an ephemeral port and returns its bound
// address plus the channel Serve's result lands on.
func startDev(t *testing.T, s *server.DevServer) (string, chan error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	var addr string
	require.Eventually(t, func() bool {
		addr = s.Addr()
		return addr != ""
	}, 2*time.Second, 10*time.Millisecond)
	return addr, done
}

func startProd(t *testing.T, s *server.ProdServer) (string, chan error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	var addr string
	require.Eventually(t, func() bool {
		addr = s.Addr()
		return addr != ""
	}, 2*time.Second, 10*time.Millisecond)
	return addr, done
}

func awaitStop(t *testing.T, done chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestDevServer_ServesProbes(t *testing.T) {
	t.Setenv(env.ApplicationEnvKey, "local")
	c := newCoordinator(t, nil)

	s := server.NewDev(c, "127.0.0.1:0", func(r *gin.Engine) {
		r.GET("/ping", func(gc *gin.Context) { gc.String(http.StatusOK, "pong") })
	}, test.NewLogger(t))

	addr, done := startDev(t, s)
	defer func() {
		s.TriggerLoopbackShutdown()
		awaitStop(t, done)
	}()

	resp, err := http.Get("http://" + addr + health.ReadinessPath)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDevServer_ShutdownEndpointNeedsToken(t *testing.T) {
	t.Setenv(env.ApplicationEnvKey, "local")
	c := newCoordinator(t, nil)

	s := server.NewDev(c, "127.0.0.1:0", nil, test.NewLogger(t))
	addr, done := startDev(t, s)
	defer func() {
		s.TriggerLoopbackShutdown()
		awaitStop(t, done)
	}()

	resp, err := http.Post("http://"+addr+server.ShutdownPath, "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDevServer_ShutdownEndpointForbiddenOutsideDev(t *testing.T) {
	t.Setenv(env.ApplicationEnvKey, "local")
	c := newCoordinator(t, nil)

	s := server.NewDev(c, "127.0.0.1:0", nil, test.NewLogger(t))
	addr, done := startDev(t, s)
	defer func() {
		t.Setenv(env.ApplicationEnvKey, "local")
		s.TriggerLoopbackShutdown()
		awaitStop(t, done)
	}()

	// The gate is evaluated per request, so flipping the environment now is
	// enough to exercise the production branch.
	t.Setenv(env.ApplicationEnvKey, "production")

	resp, err := http.Post("http://"+addr+server.ShutdownPath, "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDevServer_LoopbackShutdownStopsServer(t *testing.T) {
	t.Setenv(env.ApplicationEnvKey, "local")
	c := newCoordinator(t, nil)

	s := server.NewDev(c, "127.0.0.1:0", nil, test.NewLogger(t))
	_, done := startDev(t, s)

	s.TriggerLoopbackShutdown()
	awaitStop(t, done)
}

func TestDevServer_SignalDrivesLoopbackShutdown(t *testing.T) {
	t.Setenv(env.ApplicationEnvKey, "local")
	var exited atomic.Int32
	c := newCoordinator(t, &exited)

	s := server.NewDev(c, "127.0.0.1:0", nil, test.NewLogger(t))
	_, done := startDev(t, s)

	c.HandleSignal(syscall.SIGTERM)

	awaitStop(t, done)
	require.Zero(t, exited.Load())
}

func TestProdServer_CloseListenersStopsServe(t *testing.T) {
	c := newCoordinator(t, nil)

	s := server.NewProd(c, "127.0.0.1:0", func(mux *http.ServeMux) {
		mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("pong"))
		})
	}, test.NewLogger(t))

	addr, done := startProd(t, s)

	resp, err := http.Get("http://" + addr + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.CloseListeners()
	awaitStop(t, done)
}

func TestProdServer_GRPCHealthAlongside(t *testing.T) {
	c := newCoordinator(t, nil)

	s := server.NewProd(c, "127.0.0.1:0", nil, test.NewLogger(t),
		server.WithGRPCHealthAddress("127.0.0.1:0"))

	_, done := startProd(t, s)
	defer func() {
		s.CloseListeners()
		awaitStop(t, done)
	}()

	var grpcAddr string
	require.Eventually(t, func() bool {
		grpcAddr = s.GRPCAddr()
		return grpcAddr != ""
	}, 2*time.Second, 10*time.Millisecond)

	checker, err := health.NewChecker(health.WithTarget(grpcAddr))
	require.NoError(t, err)
	defer checker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := checker.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}

// End to end: a signal drains the executor, flips readiness, and closes the
// production listener through the coordinator's third phase.
func TestProdServer_SignalDrainsAndStops(t *testing.T) {
	var exited atomic.Int32
	c := newCoordinator(t, &exited)

	e := executor.New(c, executor.Config{Workers: 2, QueueSize: 8}, test.NewLogger(t))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, e.Close(ctx))
	})

	s := server.NewProd(c, "127.0.0.1:0", nil, test.NewLogger(t))
	addr, done := startProd(t, s)

	release := make(chan struct{})
	_, err := e.Submit(func(context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	go func() {
		time.Sleep(150 * time.Millisecond)
		close(release)
	}()

	c.HandleSignal(syscall.SIGTERM)

	awaitStop(t, done)
	require.Zero(t, exited.Load())

	// The listener is gone; new connections must fail.
	_, err = http.Get("http://" + addr + health.ReadinessPath)
	require.Error(t, err)
}
