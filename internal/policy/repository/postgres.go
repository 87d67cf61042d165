package repository

import (
	"context"
	"database/sql"
	"errors"

	"callflow/backend/internal/policy/domain"
)

const policyColumns = `id, company_id, rules, enabled, created_at`

// PostgresRepository implements Repository with database/sql.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a policy repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the policy for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	var p domain.Policy
	err := r.db.QueryRowContext(ctx, `SELECT `+policyColumns+` FROM policies WHERE id = $1`, id).
		Scan(&p.ID, &p.CompanyID, &p.Rules, &p.Enabled, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByCompany returns all policies of the company, oldest first.
func (r *PostgresRepository) ListByCompany(ctx context.Context, companyID string) ([]*domain.Policy, error) {
	return r.list(ctx, `SELECT `+policyColumns+` FROM policies WHERE company_id = $1 ORDER BY created_at`, companyID)
}

// GetEnabledPoliciesByCompany returns the enabled policies of the company, oldest first.
func (r *PostgresRepository) GetEnabledPoliciesByCompany(ctx context.Context, companyID string) ([]*domain.Policy, error) {
	return r.list(ctx, `SELECT `+policyColumns+` FROM policies WHERE company_id = $1 AND enabled ORDER BY created_at`, companyID)
}

// Create persists the policy. The policy must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO policies (`+policyColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.CompanyID, p.Rules, p.Enabled, p.CreatedAt)
	return err
}

// Update replaces rules and enabled flag of the policy.
func (r *PostgresRepository) Update(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx, `UPDATE policies SET rules = $2, enabled = $3 WHERE id = $1`, p.ID, p.Rules, p.Enabled)
	return err
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Rules, &p.Enabled, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
