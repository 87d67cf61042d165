// Package callprocessor implements the CallProcessor node, which dials every eligible contact
// of a segment with an SDR agent.
package callprocessor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	agentdomain "callflow/backend/internal/agent/domain"
	calldomain "callflow/backend/internal/call/domain"
	"callflow/backend/internal/callvars"
	"callflow/backend/internal/dialer"
	leaddomain "callflow/backend/internal/lead/domain"
	leadrepo "callflow/backend/internal/lead/repository"
	"callflow/backend/internal/logging"
	"callflow/backend/internal/node"
	"callflow/backend/internal/platform/rbac"
	scheduledomain "callflow/backend/internal/schedule/domain"
)

// Type is the node type name.
const Type = "callProcessor"

const (
	msgNoEligible  = "No eligible contacts found."
	msgUnavailable = "Agent unavailable at this time."
)

// ErrIDsRequired is returned when the agent or segment id is missing.
var ErrIDsRequired = errors.New("SDR Agent ID and Segment ID are required.")

// AgentRepo is the agent access needed by the node.
type AgentRepo interface {
	GetActiveWithSchedule(ctx context.Context, companyID, agentID string) (*agentdomain.Agent, error)
}

// LeadRepo selects dialable contacts.
type LeadRepo interface {
	ListEligible(ctx context.Context, q leadrepo.EligibilityQuery) ([]*leaddomain.Lead, error)
}

// Dialer places one call.
type Dialer interface {
	Place(ctx context.Context, c dialer.Call) (*dialer.Result, error)
}

// Config holds the call defaults and the dial concurrency.
type Config struct {
	DefaultMaxAttempts    int
	DefaultRetryAfterDays int
	Concurrency           int
}

// Node is the CallProcessor node.
type Node struct {
	companies rbac.CompanyGetter
	agents    AgentRepo
	leads     LeadRepo
	dialer    Dialer
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a CallProcessor node. Unset attempts and concurrency fall back to 3 and 8.
func New(companies rbac.CompanyGetter, agents AgentRepo, leads LeadRepo, d Dialer, cfg Config, logger *slog.Logger) *Node {
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{companies: companies, agents: agents, leads: leads, dialer: d, cfg: cfg, logger: logger, now: time.Now}
}

func (n *Node) Type() string { return Type }

// params reads a value from the node parameters, then from the first input item.
type params struct {
	req   *node.ExecuteRequest
	first node.Item
}

func (p params) string(name string) string {
	if s := p.req.String(name); s != "" {
		return s
	}
	return node.ItemString(p.first, name)
}

func (p params) int(name string, def int) int {
	if _, ok := p.req.Param(name); ok {
		return p.req.Int(name, def)
	}
	return node.ItemInt(p.first, name, def)
}

// Execute dials the segment's eligible contacts concurrently and returns one item per placed
// call. A missing agent or an empty selection yields a single message item.
func (n *Node) Execute(ctx context.Context, req *node.ExecuteRequest) (*node.ExecuteResponse, error) {
	p := params{req: req}
	if len(req.Items) > 0 {
		p.first = req.Items[0]
	}
	agentID, segmentID := p.string("sdrAgentId"), p.string("segmentId")
	if agentID == "" || segmentID == "" {
		return nil, node.InvalidInput(Type, ErrIDsRequired.Error())
	}

	company, err := rbac.RequireCompany(ctx, n.companies, req.UserID)
	if err != nil {
		return nil, err
	}
	agent, err := n.agents.GetActiveWithSchedule(ctx, company.ID, agentID)
	if err != nil {
		return nil, fmt.Errorf("load agent: %w", err)
	}
	if agent == nil {
		return message(agentdomain.ErrNoActiveAgent.Error()), nil
	}

	now := n.now()
	if req.Bool("respectAvailability", false) && !n.available(agent, now) {
		return message(msgUnavailable), nil
	}

	contacts, err := n.leads.ListEligible(ctx, leadrepo.EligibilityQuery{
		CompanyID:      company.ID,
		SegmentID:      segmentID,
		MaxAttempts:    p.int("maxAttempts", n.cfg.DefaultMaxAttempts),
		RetryAfterDays: p.int("retryAfterDays", n.cfg.DefaultRetryAfterDays),
		Now:            now,
	})
	if err != nil {
		return nil, fmt.Errorf("list eligible contacts: %w", err)
	}
	if len(contacts) == 0 {
		return message(msgNoEligible), nil
	}

	loc, err := scheduledomain.ParseUTCOffset(agent.UTCOffset())
	if err != nil {
		loc = time.UTC
	}

	results := make([]node.Item, len(contacts))
	var mu sync.Mutex
	var failures []node.Item
	// A failed dial must not cancel siblings that already reached the provider.
	var g errgroup.Group
	g.SetLimit(n.cfg.Concurrency)
	for i, lead := range contacts {
		g.Go(func() error {
			res, err := n.call(ctx, req, company.ID, segmentID, agent, lead, now, loc)
			if err != nil {
				if req.ContinueOnFail {
					mu.Lock()
					failures = append(failures, node.ErrorItem(err))
					mu.Unlock()
					return nil
				}
				return node.NewOperationError(Type, fmt.Errorf("lead %s: %w", lead.ID, err))
			}
			if res == nil {
				return nil
			}
			item := node.Item(lead.Map())
			for k, v := range res.Map() {
				item[k] = v
			}
			results[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]node.Item, 0, len(contacts)+len(failures))
	for _, item := range results {
		if item != nil {
			out = append(out, item)
		}
	}
	out = append(out, failures...)
	return node.Items(out...), nil
}

// call dials one lead. It returns nil, nil when the lead cannot be called.
func (n *Node) call(ctx context.Context, req *node.ExecuteRequest, companyID, segmentID string, agent *agentdomain.Agent, lead *leaddomain.Lead, now time.Time, loc *time.Location) (*dialer.Result, error) {
	if lead.PhoneNumber == "" || agent.PhoneNumber == "" {
		n.logger.InfoContext(ctx, "callprocessor: phone number missing", logging.LeadID(lead.ID))
		return nil, nil
	}
	vars := callvars.Build(lead.Details(), agent, now, loc)
	if missing := callvars.Missing(vars); len(missing) > 0 {
		n.logger.InfoContext(ctx, "callprocessor: lead not eligible",
			logging.LeadID(lead.ID), slog.Any("missing", missing))
		return nil, nil
	}
	return n.dialer.Place(ctx, dialer.Call{
		Agent:        agent,
		CompanyID:    companyID,
		LeadID:       lead.ID,
		LeadPhone:    lead.PhoneNumber,
		LeadPriority: lead.Priority,
		LeadProduct:  lead.ProductOfInterest,
		SegmentID:    segmentID,
		PlaybookID:   req.WorkflowID,
		WorkflowID:   req.WorkflowID,
		UserID:       req.UserID,
		CallType:     calldomain.TypePhoneCall,
		Variables:    vars,
	})
}

func (n *Node) available(agent *agentdomain.Agent, now time.Time) bool {
	if agent.Availability == nil {
		return false
	}
	hours, err := scheduledomain.ParseWeeklySchedule(agent.Availability.SchedulingHours)
	if err != nil {
		n.logger.Warn("callprocessor: bad scheduling hours", logging.AgentID(agent.ID), logging.Error(err))
		return false
	}
	return scheduledomain.IsAvailable(hours, now, agent.UTCOffset())
}

func message(msg string) *node.ExecuteResponse {
	return node.Items(node.Item{"message": msg})
}
