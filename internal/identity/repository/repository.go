package repository

import (
	"context"
	"time"

	"callflow/backend/internal/identity/domain"
)

// Repository defines persistence for revoked tokens.
type Repository interface {
	// Revoke stores the token hash; revoking twice is a no-op.
	Revoke(ctx context.Context, t *domain.RevokedToken) error
	// IsRevoked reports whether an unexpired revocation exists for the hash.
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
	// DeleteExpired removes revocations that expired before now and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
