package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCServer serves the health service and reflection for grpcurl.
type GRPCServer struct {
	srv    *grpc.Server
	health *health.Server
	addr   string
	logger *slog.Logger
}

func NewGRPCServer(addr string, logger *slog.Logger) *GRPCServer {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return &GRPCServer{srv: srv, health: hs, addr: addr, logger: logger}
}

// Health exposes the health server so a reporter can drive it.
func (s *GRPCServer) Health() *health.Server { return s.health }

// Serve listens on the configured address until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, lis)
}

// ServeListener serves on lis and stops gracefully when ctx is done.
func (s *GRPCServer) ServeListener(ctx context.Context, lis net.Listener) error {
	s.logger.Info("grpc.serving", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(lis) }()

	select {
	case <-ctx.Done():
		s.logger.Info("grpc.shutdown")
		s.srv.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		return fmt.Errorf("grpc serve: %w", err)
	}
}
