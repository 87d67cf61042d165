package handler

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"callflow/backend/internal/logging"
)

// Pinger checks database connectivity (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the policy engine can evaluate (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server implements grpc.health.v1.Health for readiness/liveness.
// Check reports NOT_SERVING when the database ping or the policy check fails.
type Server struct {
	healthpb.UnimplementedHealthServer
	pinger Pinger
	policy PolicyChecker
}

// NewServer returns a health server. pinger and policy may be nil to skip that check.
func NewServer(pinger Pinger, policy PolicyChecker) *Server {
	return &Server{pinger: pinger, policy: policy}
}

// Check returns the serving status of the whole service. Named services other than ""
// and the NodeService are NotFound.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", NodeServiceName:
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	return &healthpb.HealthCheckResponse{Status: s.status(ctx)}, nil
}

// NodeServiceName is the gRPC service whose health is reported alongside the server.
const NodeServiceName = "callflow.node.v1.NodeService"

func (s *Server) status(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	if s.pinger != nil {
		if err := s.pinger.PingContext(ctx); err != nil {
			slog.WarnContext(ctx, "health: database ping failed", logging.Error(err))
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	if s.policy != nil {
		if err := s.policy.HealthCheck(ctx); err != nil {
			slog.WarnContext(ctx, "health: policy check failed", logging.Error(err))
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	return healthpb.HealthCheckResponse_SERVING
}

// Ready reports whether every dependency check passes. Used by the HTTP /health route.
func (s *Server) Ready(ctx context.Context) bool {
	return s.status(ctx) == healthpb.HealthCheckResponse_SERVING
}
