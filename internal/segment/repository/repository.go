package repository

import (
	"context"

	"callflow/backend/internal/segment/domain"
)

// Repository defines persistence for segments.
type Repository interface {
	// GetActive returns the active segment with id in company, or nil.
	GetActive(ctx context.Context, companyID, id string) (*domain.Segment, error)
	ListActiveByCompany(ctx context.Context, companyID string) ([]*domain.Segment, error)
	// ListActiveByIDs returns the company's active segments among ids.
	ListActiveByIDs(ctx context.Context, companyID string, ids []string) ([]*domain.Segment, error)
	// RefreshLeadCount stores the segment's current member count when it is greater than zero.
	RefreshLeadCount(ctx context.Context, id string) error
}
