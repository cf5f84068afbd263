package server

import (
	"net"
	"net/http"
	"sync"

	httptrace "github.com/DataDog/dd-trace-go/contrib/net/http/v2"
	"github.com/gorilla/handlers"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
	"google.golang.org/grpc"

	"github.com/rainbow-me/platform-lifecycle/common/logger"
	"github.com/rainbow-me/platform-lifecycle/health"
	"github.com/rainbow-me/platform-lifecycle/lifecycle"
)

// ProdServer is the production adapter. The listening handle is captured at
// startup, instead of a blocking listen-and-serve call, specifically so the
// registered server-shutdown callback can close that handle directly.
// Optionally runs a standalone gRPC health listener alongside the HTTP one.
type ProdServer struct {
	cfg  Config
	log  *logger.Logger
	http *http.Server

	grpcHealth *grpc.Server

	mu           sync.Mutex
	listener     net.Listener
	grpcListener net.Listener

	stopOnce sync.Once
}

// NewProd builds the production adapter: probe routes plus the caller's mux
// routes behind tracing and access-log middleware, and the direct
// listener-close shutdown callback registered with the coordinator.
func NewProd(reg lifecycle.Registrar, address string, register func(*http.ServeMux), log *logger.Logger, opts ...Option) *ProdServer {
	if log == nil {
		log = logger.Instance()
	}

	cfg := newConfig("prod-server", address, opts...)

	mux := http.NewServeMux()
	health.NewProbes(reg).Mount(mux)
	if register != nil {
		register(mux)
	}

	// Access logs flow into the structured logger rather than stderr.
	accessLog := &zapio.Writer{Log: log.Logger.Named("access"), Level: zap.InfoLevel}
	var handler http.Handler = handlers.CombinedLoggingHandler(accessLog, mux)
	handler = withRequestID(handler)
	// Tracing wraps outermost so the request span is live when the request
	// identifier is attached as baggage.
	handler = httptrace.WrapHandler(handler, cfg.Name, "http.request")

	s := &ProdServer{
		cfg:  cfg,
		log:  log.Named("prod-server"),
		http: cfg.httpServer(handler),
	}

	if cfg.GRPCHealthAddress != "" {
		s.grpcHealth = health.NewGRPCServer(reg, log)
	}

	reg.SetServerShutdown(s.CloseListeners)

	return s
}

// Start listens and serves, blocking until the listener is closed. A clean
// close returns nil.
func (s *ProdServer) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return errors.Wrapf(err, "prod server: listen %s", s.cfg.Address)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("Production server listening", logger.String("address", ln.Addr().String()))

	if s.grpcHealth != nil {
		if err := s.startGRPCHealth(); err != nil {
			_ = ln.Close()
			return err
		}
	}

	err = s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return errors.Wrap(err, "prod server: serve")
}

func (s *ProdServer) startGRPCHealth() error {
	ln, err := net.Listen("tcp", s.cfg.GRPCHealthAddress)
	if err != nil {
		return errors.Wrapf(err, "prod server: grpc health listen %s", s.cfg.GRPCHealthAddress)
	}

	s.mu.Lock()
	s.grpcListener = ln
	s.mu.Unlock()

	s.log.Info("gRPC health listening", logger.String("address", ln.Addr().String()))

	go func() {
		if serveErr := s.grpcHealth.Serve(ln); serveErr != nil {
			s.log.Warn("gRPC health server stopped", logger.Error(serveErr))
		}
	}()
	return nil
}

// Addr returns the bound HTTP address once Start has listened. Empty before.
func (s *ProdServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GRPCAddr returns the bound gRPC health address, empty when disabled.
func (s *ProdServer) GRPCAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// CloseListeners is the server-shutdown callback handed to the coordinator:
// it closes the captured listening handles directly. In-flight requests have
// already drained by the time the coordinator invokes it.
func (s *ProdServer) CloseListeners() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		ln := s.listener
		s.mu.Unlock()

		if ln != nil {
			if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.log.Warn("Error closing listener", logger.Error(err))
			}
		}
		if s.grpcHealth != nil {
			// Stops the health listener with it.
			s.grpcHealth.GracefulStop()
		}
		s.log.Info("Listeners closed")
	})
}
