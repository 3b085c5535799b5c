package grpcserver

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/assetmeta/internal/logging"
)

// ServiceName is the health service name reported for the worker.
const ServiceName = "assetmeta.Worker"

// HealthServer exposes the standard gRPC health protocol so orchestrators can
// probe the worker.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewHealthServer builds a gRPC server with the health service registered.
// Both the overall and the worker service start as SERVING.
func NewHealthServer(logger *zap.Logger, opts ...grpc.ServerOption) *HealthServer {
	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{server: srv, health: hs, logger: logger.Named("grpc")}
}

// Serve blocks until the listener fails or Stop is called.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.logger.Info("gRPC health listening", zap.String("addr", lis.Addr().String()))
	if err := h.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return logging.NewOperationError("grpcserver.serve", "", err)
	}
	return nil
}

// SetServing flips the worker service status.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(ServiceName, status)
}

// Stop marks every service NOT_SERVING and drains in-flight RPCs until ctx
// expires, after which the server is stopped hard.
func (h *HealthServer) Stop(ctx context.Context) {
	h.health.Shutdown()

	done := make(chan struct{})
	go func() {
		h.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		h.server.Stop()
		<-done
	}
}
