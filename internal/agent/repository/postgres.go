package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"callflow/backend/internal/agent/domain"
)

const agentColumns = `a.id, a.company_id, a.agent_identifier_name, a.agent_phone_number, a.agent_voice,
	a.llm_model, a.company_name, a.custom_variables, a.status, a.created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an agent repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the agent for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM sdr_agents a WHERE a.id = $1`, id)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// GetActiveWithSchedule returns the active agent with its latest scheduling row, or nil if not found.
func (r *PostgresRepository) GetActiveWithSchedule(ctx context.Context, companyID, agentID string) (*domain.Agent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+agentColumns+`, sd.scheduling_hours, tz.utc_offset, tz.iana_timezone, sd.start_date
		 FROM sdr_agents a
		 LEFT JOIN LATERAL (
		     SELECT * FROM s_a_scheduling_details s WHERE s.sdr_agent_id = a.id ORDER BY s.id DESC LIMIT 1
		 ) sd ON TRUE
		 LEFT JOIN timezones tz ON tz.id = sd.timezone
		 WHERE a.id = $1 AND a.company_id = $2 AND a.status = $3`,
		agentID, companyID, domain.StatusActive)

	var (
		hours        []byte
		offset, iana sql.NullString
		startDate    sql.NullTime
	)
	a, err := scanAgent(row, &hours, &offset, &iana, &startDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if hours != nil {
		a.Availability = &domain.Availability{
			SchedulingHours: hours,
			UTCOffset:       offset.String,
			IANATimezone:    iana.String,
		}
		if startDate.Valid {
			t := startDate.Time
			a.Availability.StartDate = &t
		}
	}
	return a, nil
}

// ListActiveByCompany returns the company's active agents ordered by name.
func (r *PostgresRepository) ListActiveByCompany(ctx context.Context, companyID string) ([]*domain.Agent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+agentColumns+` FROM sdr_agents a WHERE a.company_id = $1 AND a.status = $2
		 ORDER BY a.agent_identifier_name`, companyID, domain.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner, extra ...any) (*domain.Agent, error) {
	var (
		a                                   domain.Agent
		name, phone, voice, model, compName sql.NullString
		vars                                []byte
	)
	dest := []any{&a.ID, &a.CompanyID, &name, &phone, &voice, &model, &compName, &vars, &a.Status, &a.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	a.IdentifierName = name.String
	a.PhoneNumber = phone.String
	a.Voice = voice.String
	a.LLMModel = model.String
	a.CompanyName = compName.String
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &a.CustomVariables); err != nil {
			return nil, fmt.Errorf("agent %s custom_variables: %w", a.ID, err)
		}
	}
	return &a, nil
}
