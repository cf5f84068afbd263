package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/rainbow-me/platform-lifecycle/common/env"
	"github.com/rainbow-me/platform-lifecycle/common/logger"
	"github.com/rainbow-me/platform-lifecycle/health"
	"github.com/rainbow-me/platform-lifecycle/lifecycle"
)

// ShutdownPath is the non-public endpoint that stops the development server
// from inside its own request cycle. It returns forbidden outside
// development-grade environments.
const ShutdownPath = "/internal/quitquitquit"

const shutdownTokenHeader = "X-Shutdown-Token"

// DevServer is the single-process development adapter. It cannot be stopped
// from outside its own request-handling loop, so its registered
// server-shutdown callback issues a loopback call to ShutdownPath, and the
// handler invokes the server's own stop primitive from that request's
// context. The loopback runs on its own short-lived goroutine so it cannot
// deadlock against the handler. gin runs in release mode; there is no
// auto-reload/respawn layer to intercept signal delivery.
type DevServer struct {
	cfg   Config
	log   *logger.Logger
	token string

	engine *gin.Engine
	http   *http.Server

	mu       sync.Mutex
	listener net.Listener

	stopOnce sync.Once
}

// NewDev builds the development adapter, mounts the probe routes and the
// internal shutdown endpoint, and registers the loopback shutdown callback
// with the coordinator. The register function, if non-nil, mounts the
// application's own routes.
func NewDev(reg lifecycle.Registrar, address string, register func(*gin.Engine), log *logger.Logger, opts ...Option) *DevServer {
	if log == nil {
		log = logger.Instance()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(RequestIDMiddleware)

	s := &DevServer{
		cfg:    newConfig("dev-server", address, opts...),
		log:    log.Named("dev-server"),
		token:  uuid.NewString(),
		engine: engine,
	}
	s.http = s.cfg.httpServer(engine)

	health.NewProbes(reg).Register(engine)
	engine.POST(ShutdownPath, s.handleShutdownRequest)
	if register != nil {
		register(engine)
	}

	reg.SetServerShutdown(s.TriggerLoopbackShutdown)

	return s
}

// Start listens and serves. It blocks until the server stops and returns nil
// on a clean stop.
func (s *DevServer) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return errors.Wrapf(err, "dev server: listen %s", s.cfg.Address)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("Development server listening", logger.String("address", ln.Addr().String()))

	if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "dev server: serve")
	}
	return nil
}

// Addr returns the bound address once Start has listened. Empty before.
func (s *DevServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// handleShutdownRequest is the internal shutdown trigger. Only a caller
// inside the same process (holding the per-process token) in a
// development-grade environment can reach the stop primitive.
func (s *DevServer) handleShutdownRequest(c *gin.Context) {
	if !env.IsDevApplicationEnv() {
		c.String(http.StatusForbidden, "forbidden")
		return
	}
	if c.GetHeader(shutdownTokenHeader) != s.token {
		c.String(http.StatusForbidden, "forbidden")
		return
	}

	s.log.Info("Internal shutdown endpoint hit, stopping server from request context")
	c.String(http.StatusOK, "shutting down")

	// The response is written; closing can proceed off the handler's
	// goroutine so this request's connection is not yanked mid-reply.
	go s.stop()
}

// TriggerLoopbackShutdown is the server-shutdown callback handed to the
// coordinator. In-flight work has already drained by the time it runs, so
// the only live request is the loopback call itself.
func (s *DevServer) TriggerLoopbackShutdown() {
	addr := s.Addr()
	if addr == "" {
		s.log.Warn("Server never started listening, nothing to stop")
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		client := resty.New().SetTimeout(DefaultLoopbackTimeout)
		resp, err := client.R().
			SetHeader(shutdownTokenHeader, s.token).
			Post("http://" + addr + ShutdownPath)
		if err != nil {
			s.log.Warn("Loopback shutdown call failed", logger.Error(err))
			return
		}
		s.log.Info("Loopback shutdown call returned",
			logger.Int("status", resp.StatusCode()))
	}()

	select {
	case <-done:
	case <-time.After(DefaultLoopbackTimeout + time.Second):
		s.log.Warn("Loopback shutdown call timed out, closing server directly")
	}
	// Idempotent; covers the case where the loopback was rejected.
	s.stop()
}

func (s *DevServer) stop() {
	s.stopOnce.Do(func() {
		if err := s.http.Close(); err != nil {
			s.log.Warn("Error closing development server", logger.Error(err))
		}
	})
}
