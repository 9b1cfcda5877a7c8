package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the gRPC health service name reported alongside "".
const ServiceName = "claimdoc.Extraction"

// newGRPCServer builds a gRPC server exposing only the standard health
// service, plus reflection for grpcurl. Status starts NOT_SERVING.
func newGRPCServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return srv, hs
}

// setServing flips the health status for both the server and the service.
func (s *Server) setServing(ok bool) {
	if s.grpcHealth == nil {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.grpcHealth.SetServingStatus("", status)
	s.grpcHealth.SetServingStatus(ServiceName, status)
}
