package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"callflow/backend/internal/schedule/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a schedule repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByPlaybook returns the first scheduling row of the playbook, or nil if not found.
func (r *PostgresRepository) GetByPlaybook(ctx context.Context, playbookID string) (*domain.Details, error) {
	var (
		d         domain.Details
		hours     []byte
		tzID      sql.NullInt64
		iana, off sql.NullString
		startDate sql.NullTime
		playbook  sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT s.id, s.sdr_agent_id, s.playbook_id, s.scheduling_hours, s.timezone,
		        tz.iana_timezone, tz.utc_offset, s.start_date
		 FROM s_a_scheduling_details s
		 LEFT JOIN timezones tz ON tz.id = s.timezone
		 WHERE s.playbook_id = $1
		 ORDER BY s.id
		 LIMIT 1`, playbookID,
	).Scan(&d.ID, &d.AgentID, &playbook, &hours, &tzID, &iana, &off, &startDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.PlaybookID = playbook.String
	d.TimezoneID = int(tzID.Int64)
	d.IANATimezone = iana.String
	d.UTCOffset = off.String
	if startDate.Valid {
		t := startDate.Time
		d.StartDate = &t
	}
	if d.Hours, err = domain.ParseWeeklySchedule(hours); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", d.ID, err)
	}
	return &d, nil
}
