package interceptors

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"callflow/backend/internal/security"
)

const bearerPrefix = "bearer "

// ErrUnauthenticated is returned by Authenticate for missing, invalid or revoked tokens.
var ErrUnauthenticated = errors.New("missing or invalid authorization")

// TokenValidator validates user API tokens.
type TokenValidator interface {
	Validate(token string) (*security.Identity, error)
}

// RevocationChecker reports whether a token hash was revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
}

// Authenticate validates token, rejects revoked tokens when revoked is non-nil, and returns ctx
// carrying the token identity.
func Authenticate(ctx context.Context, tokens TokenValidator, revoked RevocationChecker, token string) (context.Context, *security.Identity, error) {
	if token == "" || tokens == nil {
		return ctx, nil, ErrUnauthenticated
	}
	id, err := tokens.Validate(token)
	if err != nil {
		return ctx, nil, ErrUnauthenticated
	}
	if revoked != nil {
		isRevoked, err := revoked.IsRevoked(ctx, security.HashToken(token))
		if err != nil {
			return ctx, nil, err
		}
		if isRevoked {
			return ctx, nil, ErrUnauthenticated
		}
	}
	return WithIdentity(ctx, id.UserID, id.CompanyID, id.Role), id, nil
}

// AuthUnary returns a unary server interceptor that validates the Bearer token from gRPC
// metadata and sets user_id, company_id and role in context for protected RPCs.
// publicMethods is the set of full method names that do not require a Bearer token
// (e.g. grpc.health.v1.Health/Check).
func AuthUnary(tokens TokenValidator, revoked RevocationChecker, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		public := publicMethods[info.FullMethod]
		authCtx, _, err := Authenticate(ctx, tokens, revoked, extractBearer(ctx))
		if err != nil {
			if public {
				return handler(ctx, req)
			}
			if errors.Is(err, ErrUnauthenticated) {
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}
			return nil, status.Error(codes.Internal, "failed to check token")
		}
		return handler(authCtx, req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	return ParseBearer(vals[0])
}

// ParseBearer returns the token of an "Authorization: Bearer <token>" value, or "".
func ParseBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
