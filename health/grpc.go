package health

import (
	"context"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/rainbow-me/platform-lifecycle/common/logger"
	"github.com/rainbow-me/platform-lifecycle/lifecycle"
)

// NewGRPCServer builds a gRPC server carrying only the standard health
// service. The serving status flips to NOT_SERVING via a shutdown
// notification, which is the gRPC equivalent of the readiness probe going
// not-ready: load balancers stop routing while the drain proceeds.
func NewGRPCServer(reg lifecycle.Registrar, log *logger.Logger) *grpc.Server {
	if log == nil {
		log = logger.Instance()
	}

	chained := grpcmiddleware.ChainUnaryServer(
		unaryPanicRecoveryInterceptor(log),
	)

	srv := grpc.NewServer(
		grpc.UnaryInterceptor(chained),
	)

	hs := grpchealth.NewServer()
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(srv, hs)

	reg.OnShutdown(func() {
		// Marks every registered service NOT_SERVING.
		hs.Shutdown()
		log.Info("gRPC health now reporting NOT_SERVING")
	})

	return srv
}

// unaryPanicRecoveryInterceptor recovers panics in gRPC handlers, logs them
// with the standard panic fields, and returns a sanitized Internal error.
func unaryPanicRecoveryInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return grpcrecovery.UnaryServerInterceptor(
		grpcrecovery.WithRecoveryHandlerContext(func(_ context.Context, panicValue any) error {
			log.Error("Recovered from panic in gRPC handler", logger.WithPanic(panicValue)...)
			return status.Error(codes.Internal, "Internal server error occurred")
		}),
	)
}
