// Package service implements user administration: invitations, listing, deletion and role changes.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"callflow/backend/internal/security"
	"callflow/backend/internal/user/domain"
	userrepo "callflow/backend/internal/user/repository"
)

// ErrValidation wraps request validation failures; handlers map it to 400.
var ErrValidation = errors.New("validation failed")

const (
	defaultLimit    = 100
	maxLimit        = 250
	inviteSecretLen = 18
)

// Invite is one requested invitation.
type Invite struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// InviteResult is the outcome of one invitation. InviteToken is the initial password of a
// newly created user and is only returned once.
type InviteResult struct {
	User struct {
		ID          string `json:"id,omitempty"`
		Email       string `json:"email"`
		InviteToken string `json:"inviteToken,omitempty"`
	} `json:"user"`
	Error string `json:"error,omitempty"`
}

// Page is one page of users.
type Page struct {
	Users  []*domain.User
	Total  int
	Offset int
	Limit  int
}

// UserService implements user administration on top of the user repository.
type UserService struct {
	users  userrepo.Repository
	hasher *security.Hasher
	now    func() time.Time
}

// NewUserService returns a UserService.
func NewUserService(users userrepo.Repository, hasher *security.Hasher) *UserService {
	return &UserService{users: users, hasher: hasher, now: time.Now}
}

// Get returns the user or domain.ErrUserNotFound.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

// List returns one page of users, restricted to the project's users when projectID is set.
// limit is clamped to 1..250 with 100 as default.
func (s *UserService) List(ctx context.Context, offset, limit int, projectID string) (*Page, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	q := userrepo.ListQuery{Offset: offset, Limit: limit}
	if projectID != "" {
		ids, err := s.users.ProjectUserIDs(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("project users: %w", err)
		}
		q.IDs = ids
	}
	users, total, err := s.users.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Page{Users: users, Total: total, Offset: offset, Limit: limit}, nil
}

// Invite validates every invitation first; any invalid entry fails the whole request with
// ErrValidation. Existing emails are reported per entry and not recreated.
func (s *UserService) Invite(ctx context.Context, invites []Invite) ([]InviteResult, error) {
	if len(invites) == 0 {
		return nil, fmt.Errorf("%w: at least one invitation is required", ErrValidation)
	}
	roles := make([]domain.Role, len(invites))
	for i, inv := range invites {
		if !strings.Contains(inv.Email, "@") {
			return nil, fmt.Errorf("%w: invalid email %q", ErrValidation, inv.Email)
		}
		role, err := domain.AssignableRole(inv.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		roles[i] = role
	}

	results := make([]InviteResult, len(invites))
	for i, inv := range invites {
		email := strings.ToLower(strings.TrimSpace(inv.Email))
		results[i].User.Email = email
		existing, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			results[i].User.ID = existing.ID
			results[i].Error = "User already exists"
			continue
		}
		secret, err := security.GenerateSecret(inviteSecretLen)
		if err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash([]byte(secret))
		if err != nil {
			return nil, err
		}
		now := s.now().UTC()
		u := &domain.User{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: hash,
			Role:         roles[i],
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := u.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if err := s.users.Create(ctx, u); err != nil {
			results[i].Error = "Could not create user"
			continue
		}
		results[i].User.ID = u.ID
		results[i].User.InviteToken = secret
	}
	return results, nil
}

// Delete removes the user. Callers cannot delete themselves or the owner.
func (s *UserService) Delete(ctx context.Context, callerID, id string) error {
	if callerID == id {
		return domain.ErrDeleteSelf
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == domain.RoleOwner {
		return domain.ErrOwnerImmutable
	}
	return s.users.Delete(ctx, id)
}

// ChangeRole sets the global role of the user. The owner's role cannot be changed.
func (s *UserService) ChangeRole(ctx context.Context, id, newRole string) error {
	role, err := domain.AssignableRole(newRole)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == domain.RoleOwner {
		return domain.ErrOwnerImmutable
	}
	return s.users.UpdateRole(ctx, id, role)
}
