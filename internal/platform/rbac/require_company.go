package rbac

import (
	"context"
	"fmt"

	companydomain "callflow/backend/internal/company/domain"
)

// CompanyGetter resolves the company whose workflows run under an engine user.
type CompanyGetter interface {
	GetByWorkflowAccount(ctx context.Context, userID string) (*companydomain.Company, error)
}

// RequireCompany returns the company of the executing workflow user.
// Returns companydomain.ErrCompanyNotFound when the user has none.
func RequireCompany(ctx context.Context, getter CompanyGetter, userID string) (*companydomain.Company, error) {
	if userID == "" {
		return nil, companydomain.ErrCompanyNotFound
	}
	c, err := getter.GetByWorkflowAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve company: %w", err)
	}
	if c == nil {
		return nil, companydomain.ErrCompanyNotFound
	}
	return c, nil
}
