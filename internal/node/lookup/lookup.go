// Package lookup builds the option lists shared by several nodes.
package lookup

import (
	"context"

	agentdomain "callflow/backend/internal/agent/domain"
	"callflow/backend/internal/node"
	"callflow/backend/internal/platform/rbac"
	segmentdomain "callflow/backend/internal/segment/domain"
)

// SegmentLister lists a company's active segments.
type SegmentLister interface {
	ListActiveByCompany(ctx context.Context, companyID string) ([]*segmentdomain.Segment, error)
}

// AgentLister lists a company's active SDR agents.
type AgentLister interface {
	ListActiveByCompany(ctx context.Context, companyID string) ([]*agentdomain.Agent, error)
}

// Segments returns the active segments of the user's company. Users without a company get
// an empty list.
func Segments(ctx context.Context, companies rbac.CompanyGetter, segments SegmentLister, userID string) ([]node.Option, error) {
	if userID == "" {
		return []node.Option{}, nil
	}
	company, err := rbac.RequireCompany(ctx, companies, userID)
	if err != nil {
		return nil, err
	}
	rows, err := segments.ListActiveByCompany(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	out := make([]node.Option, 0, len(rows))
	for _, s := range rows {
		out = append(out, node.Option{Name: s.Name, Value: s.ID})
	}
	return out, nil
}

// Agents returns the active SDR agents of the user's company by identifier name.
func Agents(ctx context.Context, companies rbac.CompanyGetter, agents AgentLister, userID string) ([]node.Option, error) {
	if userID == "" {
		return []node.Option{}, nil
	}
	company, err := rbac.RequireCompany(ctx, companies, userID)
	if err != nil {
		return nil, err
	}
	rows, err := agents.ListActiveByCompany(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	out := make([]node.Option, 0, len(rows))
	for _, a := range rows {
		out = append(out, node.Option{Name: a.IdentifierName, Value: a.ID})
	}
	return out, nil
}
