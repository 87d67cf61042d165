package repository

import (
	"context"

	"callflow/backend/internal/user/domain"
)

// ListQuery pages through users. When IDs is non-nil only those users are listed.
type ListQuery struct {
	Offset int
	Limit  int
	IDs    []string
}

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// List returns one page ordered by creation time and the total number of matching users.
	List(ctx context.Context, q ListQuery) ([]*domain.User, int, error)
	// ProjectUserIDs returns the ids of users related to the project.
	ProjectUserIDs(ctx context.Context, projectID string) ([]string, error)
	Create(ctx context.Context, u *domain.User) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	Delete(ctx context.Context, id string) error
}
