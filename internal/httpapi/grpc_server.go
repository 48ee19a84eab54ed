package httpapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"roadwatch.mg/internal/obs"
)

// HealthServer answers grpc.health.v1 checks from the same readiness probe as /readyz.
type HealthServer struct {
	healthpb.UnimplementedHealthServer

	ready ReadyFunc
}

// NewHealthServer creates the gRPC health service.
func NewHealthServer(ready ReadyFunc) *HealthServer {
	return &HealthServer{ready: ready}
}

// NewGRPCServer builds a server with the health service registered.
func NewGRPCServer(ready ReadyFunc, opts ...grpc.ServerOption) *grpc.Server {
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, NewHealthServer(ready))
	return srv
}

// Check reports SERVING when the probe passes. Only the empty service name
// and the service's own name are known.
func (s *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if name := req.GetService(); name != "" && name != serviceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", name)
	}
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			obs.SetReady(false)
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}
	obs.SetReady(true)
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
