package service

import (
	"context"
	"errors"
	"testing"
	"time"

	companydomain "callflow/backend/internal/company/domain"
	identitydomain "callflow/backend/internal/identity/domain"
	"callflow/backend/internal/security"
	userdomain "callflow/backend/internal/user/domain"
)

// mockUserRepo implements UserRepo for token service tests.
type mockUserRepo struct {
	users map[string]*userdomain.User
	err   error
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users[id], nil
}

// mockCompanyRepo implements CompanyRepo for token service tests.
type mockCompanyRepo struct {
	byUser map[string]*companydomain.Company
}

func (m *mockCompanyRepo) GetByWorkflowAccount(ctx context.Context, userID string) (*companydomain.Company, error) {
	return m.byUser[userID], nil
}

// mockRevocationRepo implements RevocationRepo for token service tests.
type mockRevocationRepo struct {
	revoked []*identitydomain.RevokedToken
	purged  time.Time
}

func (m *mockRevocationRepo) Revoke(ctx context.Context, t *identitydomain.RevokedToken) error {
	m.revoked = append(m.revoked, t)
	return nil
}

func (m *mockRevocationRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.purged = now
	return 2, nil
}

func newTestService(t *testing.T) (*TokenService, *security.TokenProvider, *mockRevocationRepo) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	users := &mockUserRepo{users: map[string]*userdomain.User{
		"user-1":   {ID: "user-1", Email: "owner@example.com", Role: userdomain.RoleOwner},
		"user-2":   {ID: "user-2", Email: "member@example.com", Role: userdomain.RoleMember},
		"disabled": {ID: "disabled", Email: "gone@example.com", Role: userdomain.RoleMember, Disabled: true},
	}}
	companies := &mockCompanyRepo{byUser: map[string]*companydomain.Company{
		"user-1": {ID: "company-1", Name: "Acme"},
	}}
	revocations := &mockRevocationRepo{}
	return NewTokenService(users, companies, revocations, tokens), tokens, revocations
}

func TestIssueForUser_WithCompany(t *testing.T) {
	svc, tokens, _ := newTestService(t)

	res, err := svc.IssueForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IssueForUser: %v", err)
	}
	if res.User.ID != "user-1" {
		t.Errorf("user id = %q, want %q", res.User.ID, "user-1")
	}
	id, err := tokens.Validate(res.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if id.CompanyID != "company-1" || id.Role != "global:owner" {
		t.Errorf("identity = %+v", id)
	}
}

func TestIssueForUser_WithoutCompany(t *testing.T) {
	svc, tokens, _ := newTestService(t)

	res, err := svc.IssueForUser(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("IssueForUser: %v", err)
	}
	id, err := tokens.Validate(res.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if id.CompanyID != "" {
		t.Errorf("company id = %q, want empty", id.CompanyID)
	}
}

func TestIssueForUser_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	for _, id := range []string{"missing", "disabled"} {
		if _, err := svc.IssueForUser(context.Background(), id); !errors.Is(err, userdomain.ErrUserNotFound) {
			t.Errorf("IssueForUser(%q) = %v, want ErrUserNotFound", id, err)
		}
	}
}

func TestRevoke(t *testing.T) {
	svc, tokens, revocations := newTestService(t)
	token, exp, err := tokens.Issue("user-1", "company-1", "global:owner")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := svc.Revoke(context.Background(), token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if len(revocations.revoked) != 1 {
		t.Fatalf("revocations = %d, want 1", len(revocations.revoked))
	}
	got := revocations.revoked[0]
	if got.TokenHash != security.HashToken(token) {
		t.Error("revocation must store the token hash")
	}
	if !got.ExpiresAt.Equal(exp.Truncate(time.Second)) {
		t.Errorf("expires at = %v, want %v", got.ExpiresAt, exp.Truncate(time.Second))
	}
}

func TestRevoke_IgnoresEmptyAndGarbage(t *testing.T) {
	svc, _, revocations := newTestService(t)
	for _, token := range []string{"", "garbage"} {
		if err := svc.Revoke(context.Background(), token); err != nil {
			t.Errorf("Revoke(%q): %v", token, err)
		}
	}
	if len(revocations.revoked) != 0 {
		t.Errorf("revocations = %d, want 0", len(revocations.revoked))
	}
}

func TestPurgeExpired(t *testing.T) {
	svc, _, revocations := newTestService(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	n, err := svc.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 2 {
		t.Errorf("purged = %d, want 2", n)
	}
	if !revocations.purged.Equal(fixed) {
		t.Errorf("purge time = %v, want %v", revocations.purged, fixed)
	}
}
