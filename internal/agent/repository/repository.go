package repository

import (
	"context"

	"callflow/backend/internal/agent/domain"
)

// Repository defines read access to SDR agents.
type Repository interface {
	// GetByID returns the agent regardless of status, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	// GetActiveWithSchedule returns the company's active agent joined with its scheduling row
	// and timezone, or nil if not found.
	GetActiveWithSchedule(ctx context.Context, companyID, agentID string) (*domain.Agent, error)
	ListActiveByCompany(ctx context.Context, companyID string) ([]*domain.Agent, error)
}
