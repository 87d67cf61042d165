package repository

import (
	"context"
	"database/sql"
	"errors"

	"callflow/backend/internal/company/domain"
)

const companyColumns = `id, name, workflow_acc_id, retell_api_key, zoho_refresh_token, is_active, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a company repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the company for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
	return scanCompany(row)
}

// GetByWorkflowAccount returns the company linked to the engine user, or nil if not found.
func (r *PostgresRepository) GetByWorkflowAccount(ctx context.Context, userID string) (*domain.Company, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE workflow_acc_id = $1`, userID)
	return scanCompany(row)
}

// Create persists the company. The company must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Company) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, workflow_acc_id, retell_api_key, zoho_refresh_token, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, nullString(c.WorkflowAccountID), nullString(c.RetellAPIKey),
		nullString(c.ZohoRefreshToken), c.IsActive, c.CreatedAt,
	)
	return err
}

func scanCompany(row *sql.Row) (*domain.Company, error) {
	var (
		c                               domain.Company
		account, retellKey, zohoRefresh sql.NullString
	)
	err := row.Scan(&c.ID, &c.Name, &account, &retellKey, &zohoRefresh, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.WorkflowAccountID = account.String
	c.RetellAPIKey = retellKey.String
	c.ZohoRefreshToken = zohoRefresh.String
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
