package repository

import (
	"context"
	"time"

	"callflow/backend/internal/lead/domain"
)

// EligibilityQuery selects segment leads that may be dialed now.
type EligibilityQuery struct {
	CompanyID      string
	SegmentID      string
	MaxAttempts    int
	RetryAfterDays int
	Now            time.Time
}

// CallbackLead is a lead with its earliest due callback request.
type CallbackLead struct {
	Lead           *domain.Lead
	SegmentID      string
	CallBackCallID string
}

// Repository defines persistence for leads and their segment/label membership.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	// FindByCRMID returns the company lead whose crm_metadata.id equals crmID, or nil.
	FindByCRMID(ctx context.Context, companyID, crmID string) (*domain.Lead, error)
	// Create inserts a not-contacted lead with the given columns and returns its id.
	Create(ctx context.Context, companyID string, fields domain.ImportFields) (string, error)
	// Update writes the given columns only.
	Update(ctx context.Context, id string, fields domain.ImportFields) error
	AssignLabels(ctx context.Context, leadID string, labelIDs []int64) error
	// AssignSegment links lead and segment; added is false when the link already existed.
	AssignSegment(ctx context.Context, leadID, segmentID, companyID string) (added bool, err error)
	// ListSegmentContacts returns the segment's leads whose status is not in exclude.
	ListSegmentContacts(ctx context.Context, segmentID string, exclude []domain.Status) ([]*domain.Lead, error)
	ListDueCallbacks(ctx context.Context, companyID string, segmentIDs []string, now time.Time) ([]*CallbackLead, error)
	ListEligible(ctx context.Context, q EligibilityQuery) ([]*domain.Lead, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
}
