package repository

import (
	"context"
	"database/sql"
	"time"

	"callflow/backend/internal/identity/domain"
)

// PostgresRepository implements Repository with database/sql.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository returns a revoked-token repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// Revoke inserts the revocation, ignoring duplicates.
func (r *PostgresRepository) Revoke(ctx context.Context, t *domain.RevokedToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invalid_auth_tokens (token_hash, expires_at) VALUES ($1, $2) ON CONFLICT (token_hash) DO NOTHING`,
		t.TokenHash, t.ExpiresAt)
	return err
}

// IsRevoked reports whether tokenHash has an unexpired revocation.
func (r *PostgresRepository) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM invalid_auth_tokens WHERE token_hash = $1 AND expires_at > $2)`,
		tokenHash, r.now().UTC()).Scan(&exists)
	return exists, err
}

// DeleteExpired removes revocations with expires_at before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invalid_auth_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
