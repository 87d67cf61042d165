package repository

import (
	"context"

	"callflow/backend/internal/schedule/domain"
)

// Repository reads playbook scheduling rows.
type Repository interface {
	// GetByPlaybook returns the schedule of the playbook (workflow) id with its timezone, or nil if not found.
	GetByPlaybook(ctx context.Context, playbookID string) (*domain.Details, error)
}
