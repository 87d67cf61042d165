// Package callagent implements the CallAgent node, which calls its input contacts one by one
// with a configured SDR agent.
package callagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	agentdomain "callflow/backend/internal/agent/domain"
	calldomain "callflow/backend/internal/call/domain"
	"callflow/backend/internal/callvars"
	"callflow/backend/internal/dialer"
	"callflow/backend/internal/logging"
	"callflow/backend/internal/node"
	"callflow/backend/internal/node/lookup"
	"callflow/backend/internal/platform/rbac"
)

// Type is the node type name.
const Type = "callAgent"

// ErrNoPhone is returned for contacts without a phone number.
var ErrNoPhone = errors.New("contact has no phone number")

// AgentRepo is the agent access needed by the node.
type AgentRepo interface {
	lookup.AgentLister
	GetByID(ctx context.Context, id string) (*agentdomain.Agent, error)
}

// ExecutionRepo records playbook runs.
type ExecutionRepo interface {
	StartExecution(ctx context.Context, e *calldomain.Execution) (string, error)
	FinishExecution(ctx context.Context, id string, callsPlaced int) error
}

// Dialer places one call.
type Dialer interface {
	Place(ctx context.Context, c dialer.Call) (*dialer.Result, error)
}

// StatusReporter tells the engine whether an agent is running.
type StatusReporter interface {
	ReportRunningStatus(ctx context.Context, agentID, playbookID string, running bool)
}

// Node is the CallAgent node.
type Node struct {
	companies  rbac.CompanyGetter
	agents     AgentRepo
	executions ExecutionRepo
	dialer     Dialer
	status     StatusReporter
	logger     *slog.Logger
	now        func() time.Time
}

// New returns a CallAgent node.
func New(companies rbac.CompanyGetter, agents AgentRepo, executions ExecutionRepo, d Dialer, status StatusReporter, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{
		companies:  companies,
		agents:     agents,
		executions: executions,
		dialer:     d,
		status:     status,
		logger:     logger,
		now:        time.Now,
	}
}

func (n *Node) Type() string { return Type }

// LoadOptions supports getAgents.
func (n *Node) LoadOptions(ctx context.Context, method string, req *node.ExecuteRequest) ([]node.Option, error) {
	if method != "getAgents" {
		return nil, node.ErrNoOptions
	}
	return lookup.Agents(ctx, n.companies, n.agents, req.UserID)
}

// Execute calls every input contact in order. The engine sees the agent as running for the
// whole run, and the run is recorded as a playbook execution.
func (n *Node) Execute(ctx context.Context, req *node.ExecuteRequest) (*node.ExecuteResponse, error) {
	agentID := req.String("sdrAgentId")
	if agentID == "" {
		return nil, node.InvalidInput(Type, agentdomain.ErrNoCallAgent.Error())
	}
	company, err := rbac.RequireCompany(ctx, n.companies, req.UserID)
	if err != nil {
		return nil, err
	}
	agent, err := n.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("load agent: %w", err)
	}
	if !agent.IsActive() || agent.CompanyID != company.ID {
		return nil, agentdomain.ErrNoCallAgent
	}

	n.status.ReportRunningStatus(ctx, agent.ID, req.WorkflowID, true)
	defer n.status.ReportRunningStatus(context.WithoutCancel(ctx), agent.ID, req.WorkflowID, false)

	segmentID := ""
	if len(req.Items) > 0 {
		segmentID = node.ItemString(req.Items[0], "segmentId")
	}
	execID, err := n.executions.StartExecution(ctx, &calldomain.Execution{
		PlaybookID:   req.WorkflowID,
		PlaybookName: req.WorkflowName,
		AgentID:      agent.ID,
		SegmentID:    segmentID,
		IsActive:     req.WorkflowActive,
		StartedAt:    n.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("start execution: %w", err)
	}

	placed := 0
	defer func() {
		if err := n.executions.FinishExecution(context.WithoutCancel(ctx), execID, placed); err != nil {
			n.logger.WarnContext(ctx, "callagent: finish execution failed", logging.WorkflowID(req.WorkflowID), logging.Error(err))
		}
	}()

	loc := req.Location()
	out := make([]node.Item, 0, len(req.Items))
	for i, contact := range req.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := n.call(ctx, req, company.ID, agent, contact, loc)
		if errors.Is(err, ErrNoPhone) || errors.Is(err, errMissingVariables) {
			n.logger.InfoContext(ctx, "callagent: contact skipped",
				logging.LeadID(node.ItemString(contact, "id")), logging.Error(err))
			continue
		}
		if err != nil {
			if req.ContinueOnFail {
				out = append(out, node.ErrorItem(err))
				continue
			}
			return nil, node.ItemError(Type, i, err)
		}
		placed++
		item := node.Item{"contact": contact}
		for k, v := range res.Map() {
			item[k] = v
		}
		out = append(out, item)
	}
	return node.Items(out...), nil
}

var errMissingVariables = errors.New("contact is missing script variables")

func (n *Node) call(ctx context.Context, req *node.ExecuteRequest, companyID string, agent *agentdomain.Agent, contact node.Item, loc *time.Location) (*dialer.Result, error) {
	phone := node.ItemString(contact, "phone_number")
	if phone == "" {
		return nil, ErrNoPhone
	}
	vars := callvars.Build(callvars.ItemDetails(contact), agent, n.now(), loc)
	if missing := callvars.Missing(vars); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", errMissingVariables, missing)
	}
	return n.dialer.Place(ctx, dialer.Call{
		Agent:          agent,
		CompanyID:      companyID,
		LeadID:         node.ItemString(contact, "id"),
		LeadPhone:      phone,
		LeadPriority:   node.ItemString(contact, "priority"),
		LeadProduct:    node.ItemString(contact, "product_of_interest"),
		SegmentID:      node.ItemString(contact, "segmentId"),
		PlaybookID:     req.WorkflowID,
		WorkflowID:     req.WorkflowID,
		UserID:         req.UserID,
		CallType:       calldomain.TypePhoneCall,
		Variables:      vars,
		CallBackCallID: node.ItemString(contact, "callBackCallId"),
	})
}
