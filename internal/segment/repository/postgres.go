package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"callflow/backend/internal/segment/domain"
)

const segmentColumns = `id, company_id, name, is_active, filter_metadata, lead_count, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a segment repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetActive returns the active segment, or nil if not found.
func (r *PostgresRepository) GetActive(ctx context.Context, companyID, id string) (*domain.Segment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE company_id = $1 AND id = $2 AND is_active`,
		companyID, id)
	s, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListActiveByCompany returns the company's active segments ordered by name.
func (r *PostgresRepository) ListActiveByCompany(ctx context.Context, companyID string) ([]*domain.Segment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE company_id = $1 AND is_active ORDER BY name`,
		companyID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListActiveByIDs returns the company's active segments whose id is in ids.
func (r *PostgresRepository) ListActiveByIDs(ctx context.Context, companyID string, ids []string) ([]*domain.Segment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE company_id = $1 AND id = ANY($2) AND is_active ORDER BY created_at`,
		companyID, ids)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// RefreshLeadCount sets lead_count to the number of segment members. An empty segment keeps
// its stored count.
func (r *PostgresRepository) RefreshLeadCount(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE segments s SET lead_count = m.n
		 FROM (SELECT COUNT(*) AS n FROM customers_and_leads_segments WHERE segment_id = $1) m
		 WHERE s.id = $1 AND m.n > 0`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSegment(row scanner) (*domain.Segment, error) {
	var (
		s       domain.Segment
		filters []byte
	)
	if err := row.Scan(&s.ID, &s.CompanyID, &s.Name, &s.IsActive, &filters, &s.LeadCount, &s.CreatedAt); err != nil {
		return nil, err
	}
	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &s.FilterMetadata); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

func collect(rows *sql.Rows) ([]*domain.Segment, error) {
	defer rows.Close()
	var out []*domain.Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
