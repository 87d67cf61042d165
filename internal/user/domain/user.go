// Package domain defines API users and their global roles.
package domain

import (
	"errors"
	"strings"
	"time"
)

// Role is a global user role.
type Role string

const (
	RoleOwner  Role = "global:owner"
	RoleAdmin  Role = "global:admin"
	RoleMember Role = "global:member"
	// RoleEngine is the workflow engine's service account. It runs nodes for workflow users.
	RoleEngine Role = "global:engine"
)

var (
	// ErrUserNotFound is returned when the target user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidRole is returned for roles that cannot be assigned through the API.
	ErrInvalidRole = errors.New("role must be global:admin or global:member")
	// ErrOwnerImmutable is returned when an operation would change or remove the owner.
	ErrOwnerImmutable = errors.New("the owner cannot be changed or deleted")
	// ErrDeleteSelf is returned when a user tries to delete their own account.
	ErrDeleteSelf = errors.New("cannot delete your own user")
)

// User is an account of the user administration API.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         Role
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("email is invalid")
	}
	if u.Role == "" {
		u.Role = RoleMember
	}
	return nil
}

// AssignableRole parses a role that may be granted by invitation or role change.
func AssignableRole(s string) (Role, error) {
	switch r := Role(strings.TrimSpace(s)); r {
	case RoleAdmin, RoleMember:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// Public renders the user without secrets. The role is included only when includeRole is set.
func (u *User) Public(includeRole bool) map[string]any {
	out := map[string]any{
		"id":        u.ID,
		"email":     u.Email,
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"disabled":  u.Disabled,
		"createdAt": u.CreatedAt,
		"updatedAt": u.UpdatedAt,
	}
	if includeRole {
		out["role"] = string(u.Role)
	}
	return out
}
