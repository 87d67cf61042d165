package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"callflow/backend/internal/lead/domain"
)

const leadColumns = `l.id, l.company_id, l.sdr_agent_id, l.name, l.email, l.phone_number, l.company_name,
	l.job_title, l.city, l.country, l.source, l.priority, l.product_of_interest, l.status,
	l.custom_fields, l.crm_metadata, l.created_at, l.updated_at`

// blockedStatuses are never dialed by the eligibility query.
var blockedStatuses = []string{
	string(domain.StatusCalling), string(domain.StatusNonResponsive), string(domain.StatusDoNotCall),
}

type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository returns a lead repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// GetByID returns the lead for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM customers_and_leads l WHERE l.id = $1`, id)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

// FindByCRMID returns the lead imported from the CRM record crmID, or nil if not found.
func (r *PostgresRepository) FindByCRMID(ctx context.Context, companyID, crmID string) (*domain.Lead, error) {
	if crmID == "" {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM customers_and_leads l
		 WHERE l.company_id = $1 AND l.crm_metadata ->> 'id' = $2`,
		companyID, crmID)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

// Create inserts a new lead with status not-contacted.
func (r *PostgresRepository) Create(ctx context.Context, companyID string, fields domain.ImportFields) (string, error) {
	id := uuid.New().String()
	now := r.now()
	cols := []string{"id", "company_id", "status", "created_at", "updated_at"}
	args := []any{id, companyID, string(domain.StatusNotContacted), now, now}
	for _, c := range fields.Columns() {
		cols = append(cols, c)
		args = append(args, fields[c])
	}
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO customers_and_leads (%s) VALUES (%s)`,
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", err
	}
	return id, nil
}

// Update writes the given columns. An empty field set is a no-op.
func (r *PostgresRepository) Update(ctx context.Context, id string, fields domain.ImportFields) error {
	cols := fields.Columns()
	if len(cols) == 0 {
		return nil
	}
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i+1))
		args = append(args, fields[c])
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(cols)+1))
	args = append(args, r.now(), id)
	query := fmt.Sprintf(`UPDATE customers_and_leads SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(cols)+2)
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// AssignLabels links the lead to each label, ignoring existing links.
func (r *PostgresRepository) AssignLabels(ctx context.Context, leadID string, labelIDs []int64) error {
	for _, labelID := range labelIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO customers_and_leads_labels (customers_and_leads_id, label_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, leadID, labelID)
		if err != nil {
			return fmt.Errorf("assign label %d: %w", labelID, err)
		}
	}
	return nil
}

// AssignSegment links the lead to the segment, ignoring an existing link.
func (r *PostgresRepository) AssignSegment(ctx context.Context, leadID, segmentID, companyID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO customers_and_leads_segments (customers_and_leads_id, segment_id, company_id) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`, leadID, segmentID, companyID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListSegmentContacts returns segment members excluding the given statuses.
func (r *PostgresRepository) ListSegmentContacts(ctx context.Context, segmentID string, exclude []domain.Status) ([]*domain.Lead, error) {
	excluded := make([]string, len(exclude))
	for i, s := range exclude {
		excluded[i] = string(s)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+leadColumns+`
		 FROM customers_and_leads_segments ls
		 JOIN customers_and_leads l ON l.id = ls.customers_and_leads_id
		 WHERE ls.segment_id = $1 AND NOT (l.status = ANY($2))
		 ORDER BY l.created_at`,
		segmentID, excluded)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListDueCallbacks returns leads of the segments joined to their earliest due, unserved callback.
func (r *PostgresRepository) ListDueCallbacks(ctx context.Context, companyID string, segmentIDs []string, now time.Time) ([]*CallbackLead, error) {
	if len(segmentIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+leadColumns+`, ls.segment_id, cd.id
		 FROM customers_and_leads_segments ls
		 JOIN customers_and_leads l ON l.id = ls.customers_and_leads_id
		 JOIN sdr_agents_call_details cd ON cd.id = (
		     SELECT cd2.id FROM sdr_agents_call_details cd2
		     WHERE cd2.lead_id = l.id
		       AND cd2.is_callback_requested AND NOT cd2.is_callback
		       AND cd2.callback_timestamp <= $3
		     ORDER BY cd2.callback_timestamp ASC
		     LIMIT 1)
		 WHERE ls.company_id = $1 AND ls.segment_id = ANY($2)`,
		companyID, segmentIDs, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*CallbackLead
	for rows.Next() {
		var cb CallbackLead
		l, err := scanLead(rows, &cb.SegmentID, &cb.CallBackCallID)
		if err != nil {
			return nil, err
		}
		cb.Lead = l
		out = append(out, &cb)
	}
	return out, rows.Err()
}

// ListEligible returns segment leads that are not blocked, whose callback (if any) is due,
// that have fewer than MaxAttempts calls, and whose last call is at least RetryAfterDays old.
func (r *PostgresRepository) ListEligible(ctx context.Context, q EligibilityQuery) ([]*domain.Lead, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT `+leadColumns+`
		 FROM customers_and_leads_segments ls
		 JOIN customers_and_leads l ON l.id = ls.customers_and_leads_id
		 WHERE ls.company_id = $1 AND ls.segment_id = $2
		   AND NOT (l.status = ANY($3))
		   AND (l.status <> 'call-back' OR EXISTS (
		        SELECT 1 FROM sdr_agents_call_details cb
		        WHERE cb.lead_id = l.id AND cb.sdr_agent_id = l.sdr_agent_id
		          AND cb.is_callback_requested AND NOT cb.is_callback
		          AND cb.callback_timestamp <= $4))
		   AND (SELECT COUNT(*) FROM sdr_agents_call_details c WHERE c.lead_id = l.id) < $5
		   AND COALESCE((SELECT MAX(c.created_at) FROM sdr_agents_call_details c WHERE c.lead_id = l.id),
		                'epoch'::timestamptz) <= $4 - make_interval(days => $6)`,
		q.CompanyID, q.SegmentID, blockedStatuses, q.Now, q.MaxAttempts, q.RetryAfterDays)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// UpdateStatus sets the lead status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE customers_and_leads SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), r.now())
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner, extra ...any) (*domain.Lead, error) {
	var (
		l                                         domain.Lead
		agentID, name, email, phone, companyName  sql.NullString
		jobTitle, city, country, source, priority sql.NullString
		product, status                           sql.NullString
		customFields, crmMetadata                 []byte
	)
	dest := []any{
		&l.ID, &l.CompanyID, &agentID, &name, &email, &phone, &companyName,
		&jobTitle, &city, &country, &source, &priority, &product, &status,
		&customFields, &crmMetadata, &l.CreatedAt, &l.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	l.SDRAgentID = agentID.String
	l.Name = name.String
	l.Email = email.String
	l.PhoneNumber = phone.String
	l.CompanyName = companyName.String
	l.JobTitle = jobTitle.String
	l.City = city.String
	l.Country = country.String
	l.Source = source.String
	l.Priority = priority.String
	l.ProductOfInterest = product.String
	l.Status = domain.Status(status.String)
	if len(customFields) > 0 {
		if err := json.Unmarshal(customFields, &l.CustomFields); err != nil {
			return nil, fmt.Errorf("lead %s custom_fields: %w", l.ID, err)
		}
	}
	if len(crmMetadata) > 0 {
		if err := json.Unmarshal(crmMetadata, &l.CRMMetadata); err != nil {
			return nil, fmt.Errorf("lead %s crm_metadata: %w", l.ID, err)
		}
	}
	return &l, nil
}

func collect(rows *sql.Rows) ([]*domain.Lead, error) {
	defer rows.Close()
	var out []*domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
