// Package callback implements the CallBack node, which outputs contacts whose requested
// callback is due.
package callback

import (
	"context"
	"fmt"
	"time"

	leadrepo "callflow/backend/internal/lead/repository"
	"callflow/backend/internal/node"
	"callflow/backend/internal/node/lookup"
	"callflow/backend/internal/platform/rbac"
	segmentdomain "callflow/backend/internal/segment/domain"
)

// Type is the node type name.
const Type = "callBack"

// SegmentRepo is the segment access needed by the node.
type SegmentRepo interface {
	lookup.SegmentLister
	ListActiveByIDs(ctx context.Context, companyID string, ids []string) ([]*segmentdomain.Segment, error)
}

// LeadRepo is the lead access needed by the node.
type LeadRepo interface {
	ListDueCallbacks(ctx context.Context, companyID string, segmentIDs []string, now time.Time) ([]*leadrepo.CallbackLead, error)
}

// Node is the CallBack node.
type Node struct {
	companies rbac.CompanyGetter
	segments  SegmentRepo
	leads     LeadRepo
	now       func() time.Time
}

// New returns a CallBack node.
func New(companies rbac.CompanyGetter, segments SegmentRepo, leads LeadRepo) *Node {
	return &Node{companies: companies, segments: segments, leads: leads, now: time.Now}
}

func (n *Node) Type() string { return Type }

// LoadOptions supports getSegments.
func (n *Node) LoadOptions(ctx context.Context, method string, req *node.ExecuteRequest) ([]node.Option, error) {
	if method != "getSegments" {
		return nil, node.ErrNoOptions
	}
	return lookup.Segments(ctx, n.companies, n.segments, req.UserID)
}

// Execute returns one item per contact with a due callback in the selected segments of the
// user's company.
func (n *Node) Execute(ctx context.Context, req *node.ExecuteRequest) (*node.ExecuteResponse, error) {
	ids := req.StringSlice("segmentIds")
	if len(ids) == 0 {
		return nil, node.InvalidInput(Type, segmentdomain.ErrNoActiveSegment.Error())
	}
	company, err := rbac.RequireCompany(ctx, n.companies, req.UserID)
	if err != nil {
		return nil, err
	}
	segments, err := n.segments.ListActiveByIDs(ctx, company.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("load segments: %w", err)
	}
	if len(segments) == 0 {
		return nil, segmentdomain.ErrNoActiveSegment
	}
	active := make([]string, 0, len(segments))
	for _, s := range segments {
		active = append(active, s.ID)
	}

	due, err := n.leads.ListDueCallbacks(ctx, company.ID, active, n.now())
	if err != nil {
		return nil, fmt.Errorf("list callbacks: %w", err)
	}
	out := make([]node.Item, 0, len(due))
	for _, cb := range due {
		item := node.Item(cb.Lead.Map())
		item["segmentId"] = cb.SegmentID
		item["isCallBackLead"] = true
		item["callBackCallId"] = cb.CallBackCallID
		out = append(out, item)
	}
	return node.Items(out...), nil
}
