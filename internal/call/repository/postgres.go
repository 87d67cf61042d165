package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"callflow/backend/internal/call/domain"
)

type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository returns a call repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateDetail inserts the call detail row. A missing ID is generated.
func (r *PostgresRepository) CreateDetail(ctx context.Context, d *domain.Detail) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sdr_agents_call_details (
			id, sdr_agent_id, call_current_status, retell_call_id, company_id, lead_id, segment_id,
			lead_priority, lead_product_of_interest, lead_status, call_type, playbook_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID, d.AgentID, nullString(d.CurrentStatus), nullString(d.ProviderCallID), d.CompanyID, d.LeadID,
		nullString(d.SegmentID), nullString(d.LeadPriority), nullString(d.LeadProductOfInterest),
		nullString(string(d.LeadStatus)), nullString(string(d.CallType)), nullString(d.PlaybookID), d.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return d.ID, nil
}

// MarkCallbackServed sets is_callback on the call detail.
func (r *PostgresRepository) MarkCallbackServed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sdr_agents_call_details SET is_callback = TRUE WHERE id = $1`, id)
	return err
}

// LogActivity inserts a lead activity row.
func (r *PostgresRepository) LogActivity(ctx context.Context, a *domain.ActivityLog) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO lead_activity_logs (id, entity_id, entity_type, lead_id, company_id, activity, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.EntityID, string(a.EntityType), a.LeadID, a.CompanyID, string(a.Activity), a.CreatedAt,
	)
	return err
}

// StartExecution inserts an execution row and returns its id.
func (r *PostgresRepository) StartExecution(ctx context.Context, e *domain.Execution) (string, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO playbook_executions (id, playbook_id, playbook_name, agent_id, segment_id, is_active, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.PlaybookID, nullString(e.PlaybookName), nullString(e.AgentID), nullString(e.SegmentID),
		e.IsActive, e.StartedAt,
	)
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

// FinishExecution records the number of calls placed and the finish time.
func (r *PostgresRepository) FinishExecution(ctx context.Context, id string, callsPlaced int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE playbook_executions SET calls_placed = $2, finished_at = $3 WHERE id = $1`,
		id, callsPlaced, r.now())
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
