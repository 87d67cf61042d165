package repository

import (
	"context"

	"callflow/backend/internal/policy/domain"
)

// Repository defines persistence for policies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Policy, error)
	ListByCompany(ctx context.Context, companyID string) ([]*domain.Policy, error)
	GetEnabledPoliciesByCompany(ctx context.Context, companyID string) ([]*domain.Policy, error)
	Create(ctx context.Context, p *domain.Policy) error
	Update(ctx context.Context, p *domain.Policy) error
}
