package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"callflow/backend/internal/server/interceptors"
)

// User administration scopes.
const (
	ScopeUserRead       = "user:read"
	ScopeUserList       = "user:list"
	ScopeUserCreate     = "user:create"
	ScopeUserDelete     = "user:delete"
	ScopeUserChangeRole = "user:changeRole"
	ScopeAuditList      = "audit:list"
	// ScopeNodeActAs lets the workflow engine run nodes on behalf of another workflow user.
	ScopeNodeActAs = "node:actAs"
)

// ScopeChecker decides whether a role grants a scope within a company.
type ScopeChecker interface {
	Allowed(ctx context.Context, companyID, role, scope string) (bool, error)
}

// RequireScope ensures the caller is authenticated and the caller's role grants scope.
// Returns (companyID, userID, nil) on success; returns a gRPC error (Unauthenticated, Internal or
// PermissionDenied) on failure.
func RequireScope(ctx context.Context, checker ScopeChecker, scope string) (companyID, userID string, err error) {
	userID, okUser := interceptors.GetUserID(ctx)
	role, _ := interceptors.GetRole(ctx)
	if !okUser || userID == "" {
		return "", "", status.Error(codes.Unauthenticated, "user context required")
	}
	companyID, _ = interceptors.GetCompanyID(ctx)
	ok, err := checker.Allowed(ctx, companyID, role, scope)
	if err != nil {
		return "", "", status.Error(codes.Internal, "failed to evaluate scope")
	}
	if !ok {
		return "", "", status.Errorf(codes.PermissionDenied, "missing scope %s", scope)
	}
	return companyID, userID, nil
}
