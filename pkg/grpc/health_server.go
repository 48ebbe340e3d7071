package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/example/storefront/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServer serves the standard gRPC health protocol for the storefront
// process, for load balancers and orchestrators that probe over gRPC.
type HealthServer struct {
	config  *config.GRPCConfig
	service string
	server  *grpc.Server
	health  *health.Server
	logger  *zap.Logger
}

func NewHealthServer(cfg *config.GRPCConfig, service string, logger *zap.Logger) *HealthServer {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	s := &HealthServer{
		config:  cfg,
		service: service,
		server:  srv,
		health:  hs,
		logger:  logger,
	}
	s.SetServing(false)
	return s
}

// SetServing updates both the overall status and the named service status.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
}

func (s *HealthServer) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("gRPC health server started", zap.String("address", addr))
	return s.Serve(lis)
}

func (s *HealthServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Watch runs check every interval and mirrors the result into the health
// status until ctx is done.
func (s *HealthServer) Watch(ctx context.Context, interval time.Duration, check func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := true
	for {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		err := check(checkCtx)
		cancel()

		if ok := err == nil; ok != serving {
			serving = ok
			if err != nil {
				s.logger.Warn("Dependency check failed, reporting NOT_SERVING", zap.Error(err))
			} else {
				s.logger.Info("Dependencies recovered, reporting SERVING")
			}
		}
		s.SetServing(serving)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop flips every status to NOT_SERVING and drains in-flight RPCs.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
