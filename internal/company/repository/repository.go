package repository

import (
	"context"

	"callflow/backend/internal/company/domain"
)

// Repository defines persistence for companies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Company, error)
	// GetByWorkflowAccount returns the company whose workflows run under the given engine user.
	GetByWorkflowAccount(ctx context.Context, userID string) (*domain.Company, error)
	Create(ctx context.Context, c *domain.Company) error
}
