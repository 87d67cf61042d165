package main

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	scheduledomain "callflow/backend/internal/schedule/domain"
	"callflow/backend/internal/security"
	segmentdomain "callflow/backend/internal/segment/domain"
	userdomain "callflow/backend/internal/user/domain"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// Fixtures is the seed file layout.
type Fixtures struct {
	Timezones []Timezone  `yaml:"timezones"`
	Companies []Company   `yaml:"companies"`
	Users     []User      `yaml:"users"`
	Agents    []Agent     `yaml:"agents"`
	Schedules []Schedule  `yaml:"schedules"`
	Segments  []Segment   `yaml:"segments"`
	Workflows []Workflow  `yaml:"workflows"`
	Policies  []PolicyRow `yaml:"policies"`
}

type Timezone struct {
	Name      string `yaml:"name"`
	IANA      string `yaml:"iana"`
	UTCOffset string `yaml:"utcOffset"`
}

type Company struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	WorkflowAccountID string `yaml:"workflowAccountId"`
	RetellAPIKey      string `yaml:"retellApiKey"`
	ZohoRefreshToken  string `yaml:"zohoRefreshToken"`
}

type User struct {
	ID        string   `yaml:"id"`
	Email     string   `yaml:"email"`
	FirstName string   `yaml:"firstName"`
	LastName  string   `yaml:"lastName"`
	Password  string   `yaml:"password"`
	Role      string   `yaml:"role"`
	Projects  []string `yaml:"projects"`
}

type Agent struct {
	ID              string           `yaml:"id"`
	CompanyID       string           `yaml:"companyId"`
	IdentifierName  string           `yaml:"identifierName"`
	PhoneNumber     string           `yaml:"phoneNumber"`
	Voice           string           `yaml:"voice"`
	LLMModel        string           `yaml:"llmModel"`
	CompanyName     string           `yaml:"companyName"`
	CustomVariables []map[string]any `yaml:"customVariables"`
}

type Schedule struct {
	ID         string                        `yaml:"id"`
	AgentID    string                        `yaml:"agentId"`
	PlaybookID string                        `yaml:"playbookId"`
	Timezone   string                        `yaml:"timezone"`
	StartDate  string                        `yaml:"startDate"`
	Hours      scheduledomain.WeeklySchedule `yaml:"hours"`
}

type Segment struct {
	ID        string                 `yaml:"id"`
	CompanyID string                 `yaml:"companyId"`
	Name      string                 `yaml:"name"`
	Filters   []segmentdomain.Filter `yaml:"filters"`
	Leads     []Lead                 `yaml:"leads"`
}

type Lead struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Email       string `yaml:"email"`
	PhoneNumber string `yaml:"phoneNumber"`
	CompanyName string `yaml:"companyName"`
	Priority    string `yaml:"priority"`
	Product     string `yaml:"productOfInterest"`
	Status      string `yaml:"status"`
}

type Workflow struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	UserID   string `yaml:"userId"`
	Timezone string `yaml:"timezone"`
}

type PolicyRow struct {
	ID        string `yaml:"id"`
	CompanyID string `yaml:"companyId"`
	Rules     string `yaml:"rules"`
}

// loadFixtures decodes raw and checks references between sections.
func loadFixtures(raw []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("fixtures: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixtures) validate() error {
	companies := map[string]bool{}
	for _, c := range f.Companies {
		if c.ID == "" || c.Name == "" {
			return errors.New("fixtures: company id and name are required")
		}
		companies[c.ID] = true
	}
	timezones := map[string]bool{}
	for _, tz := range f.Timezones {
		if _, err := time.LoadLocation(tz.IANA); err != nil {
			return fmt.Errorf("fixtures: timezone %q: %w", tz.Name, err)
		}
		timezones[tz.Name] = true
	}
	agents := map[string]bool{}
	for _, a := range f.Agents {
		if !companies[a.CompanyID] {
			return fmt.Errorf("fixtures: agent %s: unknown company %q", a.ID, a.CompanyID)
		}
		agents[a.ID] = true
	}
	for _, s := range f.Schedules {
		if !agents[s.AgentID] {
			return fmt.Errorf("fixtures: schedule %s: unknown agent %q", s.ID, s.AgentID)
		}
		if s.Timezone != "" && !timezones[s.Timezone] {
			return fmt.Errorf("fixtures: schedule %s: unknown timezone %q", s.ID, s.Timezone)
		}
		if s.StartDate != "" {
			if _, err := time.Parse(time.DateOnly, s.StartDate); err != nil {
				return fmt.Errorf("fixtures: schedule %s: start date: %w", s.ID, err)
			}
		}
	}
	for _, s := range f.Segments {
		if !companies[s.CompanyID] {
			return fmt.Errorf("fixtures: segment %s: unknown company %q", s.ID, s.CompanyID)
		}
	}
	for _, p := range f.Policies {
		if !companies[p.CompanyID] {
			return fmt.Errorf("fixtures: policy %s: unknown company %q", p.ID, p.CompanyID)
		}
	}
	for _, u := range f.Users {
		if err := (&userdomain.User{ID: u.ID, Email: u.Email, Role: userdomain.Role(u.Role)}).Validate(); err != nil {
			return fmt.Errorf("fixtures: user %s: %w", u.ID, err)
		}
	}
	return nil
}

// apply inserts every fixture row in tx. Existing rows are left untouched.
func (f *Fixtures) apply(ctx context.Context, tx *sql.Tx, hasher *security.Hasher) error {
	tzIDs := map[string]int{}
	for _, tz := range f.Timezones {
		var id int
		err := tx.QueryRowContext(ctx, `SELECT id FROM timezones WHERE name = $1`, tz.Name).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			err = tx.QueryRowContext(ctx,
				`INSERT INTO timezones (name, iana_timezone, utc_offset) VALUES ($1, $2, $3) RETURNING id`,
				tz.Name, tz.IANA, tz.UTCOffset).Scan(&id)
		}
		if err != nil {
			return fmt.Errorf("timezone %s: %w", tz.Name, err)
		}
		tzIDs[tz.Name] = id
	}

	for _, c := range f.Companies {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO companies (id, name, workflow_acc_id, retell_api_key, zoho_refresh_token)
			 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, '')) ON CONFLICT (id) DO NOTHING`,
			c.ID, c.Name, c.WorkflowAccountID, c.RetellAPIKey, c.ZohoRefreshToken); err != nil {
			return fmt.Errorf("company %s: %w", c.ID, err)
		}
	}

	for _, u := range f.Users {
		var hash sql.NullString
		if u.Password != "" {
			h, err := hasher.Hash([]byte(u.Password))
			if err != nil {
				return fmt.Errorf("user %s: hash password: %w", u.ID, err)
			}
			hash = sql.NullString{String: h, Valid: true}
		}
		role := u.Role
		if role == "" {
			role = string(userdomain.RoleMember)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email, first_name, last_name, password_hash, role)
			 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING`,
			u.ID, u.Email, u.FirstName, u.LastName, hash, role); err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
		for _, p := range u.Projects {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO project_relations (project_id, user_id, role) VALUES ($1, $2, 'project:personalOwner')
				 ON CONFLICT DO NOTHING`, p, u.ID); err != nil {
				return fmt.Errorf("user %s project %s: %w", u.ID, p, err)
			}
		}
	}

	for _, a := range f.Agents {
		vars, err := json.Marshal(orEmpty(a.CustomVariables))
		if err != nil {
			return fmt.Errorf("agent %s: %w", a.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sdr_agents (id, company_id, agent_identifier_name, agent_phone_number, agent_voice, llm_model, company_name, custom_variables)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO NOTHING`,
			a.ID, a.CompanyID, a.IdentifierName, a.PhoneNumber, a.Voice, a.LLMModel, a.CompanyName, vars); err != nil {
			return fmt.Errorf("agent %s: %w", a.ID, err)
		}
	}

	for _, s := range f.Schedules {
		hours, err := s.Hours.Encode()
		if err != nil {
			return fmt.Errorf("schedule %s: %w", s.ID, err)
		}
		var tz sql.NullInt64
		if id, ok := tzIDs[s.Timezone]; ok {
			tz = sql.NullInt64{Int64: int64(id), Valid: true}
		}
		var start sql.NullString
		if s.StartDate != "" {
			start = sql.NullString{String: s.StartDate, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO s_a_scheduling_details (id, sdr_agent_id, playbook_id, scheduling_hours, timezone, start_date)
			 VALUES ($1, $2, $3, $4, $5, $6::date) ON CONFLICT (id) DO NOTHING`,
			s.ID, s.AgentID, s.PlaybookID, hours, tz, start); err != nil {
			return fmt.Errorf("schedule %s: %w", s.ID, err)
		}
	}

	for _, s := range f.Segments {
		filters, err := json.Marshal(orEmpty(s.Filters))
		if err != nil {
			return fmt.Errorf("segment %s: %w", s.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO segments (id, company_id, name, filter_metadata, lead_count)
			 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
			s.ID, s.CompanyID, s.Name, filters, len(s.Leads)); err != nil {
			return fmt.Errorf("segment %s: %w", s.ID, err)
		}
		for _, l := range s.Leads {
			status := l.Status
			if status == "" {
				status = "not-contacted"
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO customers_and_leads (id, company_id, name, email, phone_number, company_name, priority, product_of_interest, status)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (id) DO NOTHING`,
				l.ID, s.CompanyID, l.Name, l.Email, l.PhoneNumber, l.CompanyName, l.Priority, l.Product, status); err != nil {
				return fmt.Errorf("lead %s: %w", l.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO customers_and_leads_segments (customers_and_leads_id, segment_id, company_id)
				 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, l.ID, s.ID, s.CompanyID); err != nil {
				return fmt.Errorf("lead %s segment: %w", l.ID, err)
			}
		}
	}

	for _, w := range f.Workflows {
		settings, err := json.Marshal(map[string]string{"timezone": w.Timezone})
		if err != nil {
			return fmt.Errorf("workflow %s: %w", w.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO workflows (id, name, user_id, settings) VALUES ($1, $2, NULLIF($3, ''), $4) ON CONFLICT (id) DO NOTHING`,
			w.ID, w.Name, w.UserID, settings); err != nil {
			return fmt.Errorf("workflow %s: %w", w.ID, err)
		}
	}

	for _, p := range f.Policies {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO policies (id, company_id, rules) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			p.ID, p.CompanyID, p.Rules); err != nil {
			return fmt.Errorf("policy %s: %w", p.ID, err)
		}
	}
	return nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
