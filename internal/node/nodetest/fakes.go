// Package nodetest provides in-memory repositories for node tests.
package nodetest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	agentdomain "callflow/backend/internal/agent/domain"
	calldomain "callflow/backend/internal/call/domain"
	companydomain "callflow/backend/internal/company/domain"
	leaddomain "callflow/backend/internal/lead/domain"
	leadrepo "callflow/backend/internal/lead/repository"
	segmentdomain "callflow/backend/internal/segment/domain"
)

// Companies maps engine user ids to companies.
type Companies map[string]*companydomain.Company

func (c Companies) GetByWorkflowAccount(ctx context.Context, userID string) (*companydomain.Company, error) {
	return c[userID], nil
}

func (c Companies) GetByID(ctx context.Context, id string) (*companydomain.Company, error) {
	for _, co := range c {
		if co.ID == id {
			return co, nil
		}
	}
	return nil, nil
}

// Segments is an in-memory segment store. Members counts segment members for RefreshLeadCount.
type Segments struct {
	mu      sync.Mutex
	Rows    []*segmentdomain.Segment
	Members func(segmentID string) int
}

func (s *Segments) GetActive(ctx context.Context, companyID, id string) (*segmentdomain.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.Rows {
		if r.ID == id && r.CompanyID == companyID && r.IsActive {
			return r, nil
		}
	}
	return nil, nil
}

func (s *Segments) ListActiveByCompany(ctx context.Context, companyID string) ([]*segmentdomain.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*segmentdomain.Segment
	for _, r := range s.Rows {
		if r.CompanyID == companyID && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Segments) ListActiveByIDs(ctx context.Context, companyID string, ids []string) ([]*segmentdomain.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*segmentdomain.Segment
	for _, r := range s.Rows {
		if r.CompanyID == companyID && r.IsActive && slices.Contains(ids, r.ID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Segments) RefreshLeadCount(ctx context.Context, id string) error {
	if s.Members == nil {
		return nil
	}
	n := s.Members(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.Rows {
		if r.ID == id && n > 0 {
			r.LeadCount = n
		}
	}
	return nil
}

// Leads is an in-memory lead store. Members maps segment id to lead ids.
type Leads struct {
	mu        sync.Mutex
	Rows      []*leaddomain.Lead
	Members   map[string][]string
	Labels    map[string][]int64
	Callbacks []*leadrepo.CallbackLead
	Eligible  []*leaddomain.Lead
	Queries   []leadrepo.EligibilityQuery
	Updates   map[string]leaddomain.ImportFields
	Statuses  map[string]leaddomain.Status
	CreateErr error
}

func (l *Leads) GetByID(ctx context.Context, id string) (*leaddomain.Lead, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.find(id), nil
}

func (l *Leads) find(id string) *leaddomain.Lead {
	for _, r := range l.Rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (l *Leads) FindByCRMID(ctx context.Context, companyID, crmID string) (*leaddomain.Lead, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.Rows {
		if r.CompanyID == companyID && r.CRMMetadata != nil && fmt.Sprint(r.CRMMetadata["id"]) == crmID {
			return r, nil
		}
	}
	return nil, nil
}

func (l *Leads) Create(ctx context.Context, companyID string, fields leaddomain.ImportFields) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.CreateErr != nil {
		return "", l.CreateErr
	}
	lead := &leaddomain.Lead{
		ID:          fmt.Sprintf("lead-%d", len(l.Rows)+1),
		CompanyID:   companyID,
		Status:      leaddomain.StatusNotContacted,
		Name:        str(fields["name"]),
		Email:       str(fields["email"]),
		PhoneNumber: str(fields["phone_number"]),
	}
	l.Rows = append(l.Rows, lead)
	return lead.ID, nil
}

func (l *Leads) Update(ctx context.Context, id string, fields leaddomain.ImportFields) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Updates == nil {
		l.Updates = map[string]leaddomain.ImportFields{}
	}
	l.Updates[id] = fields
	if lead := l.find(id); lead != nil {
		if v, ok := fields["email"]; ok {
			lead.Email = str(v)
		}
		if v, ok := fields["phone_number"]; ok {
			lead.PhoneNumber = str(v)
		}
	}
	return nil
}

func (l *Leads) AssignLabels(ctx context.Context, leadID string, labelIDs []int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Labels == nil {
		l.Labels = map[string][]int64{}
	}
	l.Labels[leadID] = append(l.Labels[leadID], labelIDs...)
	return nil
}

func (l *Leads) AssignSegment(ctx context.Context, leadID, segmentID, companyID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Members == nil {
		l.Members = map[string][]string{}
	}
	if slices.Contains(l.Members[segmentID], leadID) {
		return false, nil
	}
	l.Members[segmentID] = append(l.Members[segmentID], leadID)
	return true, nil
}

// MemberCount returns the number of leads in segmentID.
func (l *Leads) MemberCount(segmentID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Members[segmentID])
}

func (l *Leads) ListSegmentContacts(ctx context.Context, segmentID string, exclude []leaddomain.Status) ([]*leaddomain.Lead, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*leaddomain.Lead
	for _, id := range l.Members[segmentID] {
		lead := l.find(id)
		if lead == nil || slices.Contains(exclude, lead.Status) {
			continue
		}
		out = append(out, lead)
	}
	return out, nil
}

func (l *Leads) ListDueCallbacks(ctx context.Context, companyID string, segmentIDs []string, now time.Time) ([]*leadrepo.CallbackLead, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*leadrepo.CallbackLead
	for _, cb := range l.Callbacks {
		if cb.Lead.CompanyID == companyID && slices.Contains(segmentIDs, cb.SegmentID) {
			out = append(out, cb)
		}
	}
	return out, nil
}

func (l *Leads) ListEligible(ctx context.Context, q leadrepo.EligibilityQuery) ([]*leaddomain.Lead, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Queries = append(l.Queries, q)
	return l.Eligible, nil
}

func (l *Leads) UpdateStatus(ctx context.Context, id string, status leaddomain.Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Statuses == nil {
		l.Statuses = map[string]leaddomain.Status{}
	}
	l.Statuses[id] = status
	return nil
}

// Agents is an in-memory agent store.
type Agents struct {
	Rows []*agentdomain.Agent
}

func (a *Agents) GetByID(ctx context.Context, id string) (*agentdomain.Agent, error) {
	for _, r := range a.Rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (a *Agents) GetActiveWithSchedule(ctx context.Context, companyID, agentID string) (*agentdomain.Agent, error) {
	for _, r := range a.Rows {
		if r.ID == agentID && r.CompanyID == companyID && r.IsActive() {
			return r, nil
		}
	}
	return nil, nil
}

func (a *Agents) ListActiveByCompany(ctx context.Context, companyID string) ([]*agentdomain.Agent, error) {
	var out []*agentdomain.Agent
	for _, r := range a.Rows {
		if r.CompanyID == companyID && r.IsActive() {
			out = append(out, r)
		}
	}
	return out, nil
}

// Calls records call details, activity and executions.
type Calls struct {
	mu         sync.Mutex
	Details    []*calldomain.Detail
	Activities []*calldomain.ActivityLog
	Served     []string
	Executions []*calldomain.Execution
	Finished   map[string]int
}

func (c *Calls) CreateDetail(ctx context.Context, d *calldomain.Detail) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Details = append(c.Details, d)
	return fmt.Sprintf("detail-%d", len(c.Details)), nil
}

func (c *Calls) MarkCallbackServed(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Served = append(c.Served, id)
	return nil
}

func (c *Calls) LogActivity(ctx context.Context, a *calldomain.ActivityLog) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Activities = append(c.Activities, a)
	return nil
}

func (c *Calls) StartExecution(ctx context.Context, e *calldomain.Execution) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Executions = append(c.Executions, e)
	return fmt.Sprintf("exec-%d", len(c.Executions)), nil
}

func (c *Calls) FinishExecution(ctx context.Context, id string, callsPlaced int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Finished == nil {
		c.Finished = map[string]int{}
	}
	c.Finished[id] = callsPlaced
	return nil
}

func str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
