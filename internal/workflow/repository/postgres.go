package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"callflow/backend/internal/workflow/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a workflow repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the workflow for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Workflow, error) {
	var (
		w        domain.Workflow
		userID   sql.NullString
		settings []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, user_id, active, settings, updated_at FROM workflows WHERE id = $1`, id,
	).Scan(&w.ID, &w.Name, &userID, &w.Active, &settings, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.UserID = userID.String
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &w.Settings); err != nil {
			return nil, fmt.Errorf("workflow %s settings: %w", id, err)
		}
	}
	return &w, nil
}

// UpdateTimezone writes settings.timezone. An empty timezone is a no-op.
func (r *PostgresRepository) UpdateTimezone(ctx context.Context, id, timezone string) error {
	if timezone == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE workflows SET settings = jsonb_set(settings, '{timezone}', to_jsonb($2::text)), updated_at = NOW()
		 WHERE id = $1`, id, timezone)
	return err
}
