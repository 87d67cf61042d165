package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"callflow/backend/internal/audit"
	healthhandler "callflow/backend/internal/health/handler"
	nodehandler "callflow/backend/internal/node/handler"
	"callflow/backend/internal/platform/rbac"
	"callflow/backend/internal/server/interceptors"
	"callflow/backend/internal/telemetry"
)

// Deps holds optional service dependencies for gRPC handlers.
type Deps struct {
	// Registry runs nodes for NodeService. If nil, NodeService RPCs return Unimplemented.
	Registry nodehandler.Registry
	// HealthPinger is used by the health service for readiness (e.g. *sql.DB). If nil, Check skips DB ping.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used by the health service for readiness (e.g. OPA evaluator). If nil, Check skips policy check.
	HealthPolicyChecker healthhandler.PolicyChecker
	// Scopes decides node:actAs for NodeService requests naming another userId. May be nil.
	Scopes rbac.ScopeChecker
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - callflow.node.v1.NodeService → internal/node/handler
//   - grpc.health.v1.Health        → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	nodehandler.RegisterNodeServiceServer(s, nodehandler.NewServer(deps.Registry).WithScopes(deps.Scopes))
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(deps.HealthPinger, deps.HealthPolicyChecker))
}

// Options configures the interceptor chain of the gRPC server.
type Options struct {
	// Tokens validates Bearer tokens. If nil, every non-public RPC is Unauthenticated.
	Tokens interceptors.TokenValidator
	// Revocations rejects revoked tokens. May be nil.
	Revocations interceptors.RevocationChecker
	// Audit records an audit entry per authenticated RPC. May be nil.
	Audit audit.AuditLogger
	// Telemetry receives grpc_request events. May be nil.
	Telemetry telemetry.EventEmitter
}

// PublicMethods are callable without a Bearer token.
var PublicMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// NewGRPCServer returns a gRPC server with OpenTelemetry stats and the auth, audit and
// telemetry interceptors, in that order. Health checks are neither audited nor emitted.
func NewGRPCServer(opts Options) *grpc.Server {
	return grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(opts.Tokens, opts.Revocations, PublicMethods),
			interceptors.AuditUnary(opts.Audit, PublicMethods),
			interceptors.TelemetryUnary(opts.Telemetry, PublicMethods),
		),
	)
}
