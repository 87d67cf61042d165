package repository

import (
	"context"

	"callflow/backend/internal/workflow/domain"
)

// Repository reads workflows and updates their settings.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Workflow, error)
	// UpdateTimezone sets settings.timezone on the workflow.
	UpdateTimezone(ctx context.Context, id, timezone string) error
}
