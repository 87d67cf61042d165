// Package service issues and revokes user API tokens.
package service

import (
	"context"
	"time"

	companydomain "callflow/backend/internal/company/domain"
	identitydomain "callflow/backend/internal/identity/domain"
	"callflow/backend/internal/security"
	userdomain "callflow/backend/internal/user/domain"
)

// UserRepo is the minimal user repository needed by the token service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// CompanyRepo is the minimal company repository needed by the token service.
type CompanyRepo interface {
	GetByWorkflowAccount(ctx context.Context, userID string) (*companydomain.Company, error)
}

// RevocationRepo is the minimal revoked-token repository needed by the token service.
type RevocationRepo interface {
	Revoke(ctx context.Context, t *identitydomain.RevokedToken) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Issuer signs user API tokens.
type Issuer interface {
	Issue(userID, companyID, role string) (string, time.Time, error)
}

// TokenResult is an issued token with its user.
type TokenResult struct {
	User      *userdomain.User
	Token     string
	ExpiresAt time.Time
}

// TokenService issues tokens for users and records revocations.
type TokenService struct {
	users       UserRepo
	companies   CompanyRepo
	revocations RevocationRepo
	tokens      Issuer
	now         func() time.Time
}

// NewTokenService returns a TokenService with the given dependencies.
func NewTokenService(users UserRepo, companies CompanyRepo, revocations RevocationRepo, tokens Issuer) *TokenService {
	return &TokenService{users: users, companies: companies, revocations: revocations, tokens: tokens, now: time.Now}
}

// IssueForUser signs a token for the user. The token carries the company whose workflows run
// under the user, if any. Returns userdomain.ErrUserNotFound for unknown or disabled users.
func (s *TokenService) IssueForUser(ctx context.Context, userID string) (*TokenResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Disabled {
		return nil, userdomain.ErrUserNotFound
	}
	companyID := ""
	if s.companies != nil {
		c, err := s.companies.GetByWorkflowAccount(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		if c != nil {
			companyID = c.ID
		}
	}
	token, exp, err := s.tokens.Issue(u.ID, companyID, string(u.Role))
	if err != nil {
		return nil, err
	}
	return &TokenResult{User: u, Token: token, ExpiresAt: exp}, nil
}

// Revoke stores the token hash until the token's own expiry. Empty tokens and tokens without
// a readable exp claim are ignored.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	exp, ok := security.UnverifiedExpiry(token)
	if !ok || !exp.After(s.now()) {
		return nil
	}
	return s.revocations.Revoke(ctx, &identitydomain.RevokedToken{
		TokenHash: security.HashToken(token),
		ExpiresAt: exp,
	})
}

// PurgeExpired deletes revocations of tokens that have expired.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.revocations.DeleteExpired(ctx, s.now().UTC())
}
