package rbac

import (
	"context"
	"errors"
	"testing"

	companydomain "callflow/backend/internal/company/domain"
)

// mockCompanyGetter implements CompanyGetter for RequireCompany tests.
type mockCompanyGetter struct {
	byUser map[string]*companydomain.Company
	err    error
}

func (m *mockCompanyGetter) GetByWorkflowAccount(ctx context.Context, userID string) (*companydomain.Company, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byUser[userID], nil
}

func TestRequireCompany_Success(t *testing.T) {
	getter := &mockCompanyGetter{byUser: map[string]*companydomain.Company{
		"wf-user-1": {ID: "company-1", Name: "Acme"},
	}}
	c, err := RequireCompany(context.Background(), getter, "wf-user-1")
	if err != nil {
		t.Fatalf("RequireCompany: %v", err)
	}
	if c.ID != "company-1" {
		t.Errorf("company id = %q, want %q", c.ID, "company-1")
	}
}

func TestRequireCompany_NotFound(t *testing.T) {
	getter := &mockCompanyGetter{byUser: map[string]*companydomain.Company{}}
	for _, userID := range []string{"", "wf-user-2"} {
		_, err := RequireCompany(context.Background(), getter, userID)
		if !errors.Is(err, companydomain.ErrCompanyNotFound) {
			t.Errorf("RequireCompany(%q) err = %v, want ErrCompanyNotFound", userID, err)
		}
	}
}

func TestRequireCompany_RepositoryError(t *testing.T) {
	dbErr := errors.New("connection refused")
	_, err := RequireCompany(context.Background(), &mockCompanyGetter{err: dbErr}, "wf-user-1")
	if !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want wrapped repository error", err)
	}
	if errors.Is(err, companydomain.ErrCompanyNotFound) {
		t.Error("repository failure must not be reported as not found")
	}
}
