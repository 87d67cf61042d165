package repository

import (
	"context"

	"callflow/backend/internal/call/domain"
)

// Repository persists call details, lead activity and playbook executions.
type Repository interface {
	// CreateDetail stores the call and returns its id.
	CreateDetail(ctx context.Context, d *domain.Detail) (string, error)
	// MarkCallbackServed flags a requested callback as handled.
	MarkCallbackServed(ctx context.Context, id string) error
	LogActivity(ctx context.Context, a *domain.ActivityLog) error
	StartExecution(ctx context.Context, e *domain.Execution) (string, error)
	FinishExecution(ctx context.Context, id string, callsPlaced int) error
}
