// Package grpc serves the standard gRPC health service so orchestrators can
// probe the account service.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/staffkeeper/internal/logging"
)

// ServiceName is the health-checked service name besides the overall "".
const ServiceName = "staffkeeper.Accounts"

type GRPCServer struct {
	address string
	logger  logging.Logger
	health  *health.Server
}

// NewGRPCServer starts out NOT_SERVING; Run switches to SERVING once the
// listener is up.
func NewGRPCServer(a string, l logging.Logger) *GRPCServer {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		health:  h,
	}
}

// Run listens on the configured address until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled. Health turns
// NOT_SERVING before the graceful stop.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
