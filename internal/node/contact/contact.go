// Package contact implements the Contact node: it imports input items as leads into a segment
// and outputs the segment's contacts.
package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	leaddomain "callflow/backend/internal/lead/domain"
	"callflow/backend/internal/logging"
	"callflow/backend/internal/node"
	"callflow/backend/internal/node/lookup"
	"callflow/backend/internal/platform/rbac"
	segmentdomain "callflow/backend/internal/segment/domain"
)

// Type is the node type name.
const Type = "contact"

// ErrNoLeadFields is returned for input items with nothing to import.
var ErrNoLeadFields = errors.New("No valid lead fields to insert.")

// excludedStatuses are skipped outside manual runs.
var excludedStatuses = []leaddomain.Status{
	leaddomain.StatusCalling,
	leaddomain.StatusNonResponsive,
	leaddomain.StatusDoNotCall,
	leaddomain.StatusContacted,
}

// SegmentRepo is the segment access needed by the node.
type SegmentRepo interface {
	lookup.SegmentLister
	GetActive(ctx context.Context, companyID, id string) (*segmentdomain.Segment, error)
	RefreshLeadCount(ctx context.Context, id string) error
}

// LeadRepo is the lead access needed by the node.
type LeadRepo interface {
	FindByCRMID(ctx context.Context, companyID, crmID string) (*leaddomain.Lead, error)
	Create(ctx context.Context, companyID string, fields leaddomain.ImportFields) (string, error)
	Update(ctx context.Context, id string, fields leaddomain.ImportFields) error
	AssignLabels(ctx context.Context, leadID string, labelIDs []int64) error
	AssignSegment(ctx context.Context, leadID, segmentID, companyID string) (bool, error)
	ListSegmentContacts(ctx context.Context, segmentID string, exclude []leaddomain.Status) ([]*leaddomain.Lead, error)
}

// Node is the Contact node.
type Node struct {
	companies rbac.CompanyGetter
	segments  SegmentRepo
	leads     LeadRepo
	logger    *slog.Logger
}

// New returns a Contact node.
func New(companies rbac.CompanyGetter, segments SegmentRepo, leads LeadRepo, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{companies: companies, segments: segments, leads: leads, logger: logger}
}

func (n *Node) Type() string { return Type }

// LoadOptions supports getSegments.
func (n *Node) LoadOptions(ctx context.Context, method string, req *node.ExecuteRequest) ([]node.Option, error) {
	if method != "getSegments" {
		return nil, node.ErrNoOptions
	}
	return lookup.Segments(ctx, n.companies, n.segments, req.UserID)
}

// Execute imports the input items into the segment, then returns the segment's contacts.
// Manual runs return every contact; other runs skip contacts that are being called or done.
func (n *Node) Execute(ctx context.Context, req *node.ExecuteRequest) (*node.ExecuteResponse, error) {
	segmentID := req.String("segmentId")
	if segmentID == "" {
		return nil, node.InvalidInput(Type, segmentdomain.ErrNoActiveSegment.Error())
	}
	company, err := rbac.RequireCompany(ctx, n.companies, req.UserID)
	if err != nil {
		return nil, err
	}
	segment, err := n.segments.GetActive(ctx, company.ID, segmentID)
	if err != nil {
		return nil, fmt.Errorf("load segment: %w", err)
	}
	if segment == nil {
		return nil, segmentdomain.ErrNoActiveSegment
	}

	labels := segment.LabelIDs()
	added := 0
	for i, item := range req.Items {
		if len(item) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		linked, err := n.importLead(ctx, segment, labels, item)
		if err != nil {
			if req.ContinueOnFail {
				n.logger.WarnContext(ctx, "contact: import failed",
					logging.CompanyID(company.ID), slog.Int("item", i), logging.Error(err))
				continue
			}
			return nil, node.ItemError(Type, i, err)
		}
		if linked {
			added++
		}
	}
	if err := n.segments.RefreshLeadCount(ctx, segment.ID); err != nil {
		return nil, fmt.Errorf("update segment lead count: %w", err)
	}
	n.logger.DebugContext(ctx, "contact: leads imported",
		logging.CompanyID(company.ID), slog.String("segment_id", segment.ID), slog.Int("linked", added))

	var exclude []leaddomain.Status
	if req.Mode != node.ModeManual {
		exclude = excludedStatuses
	}
	contacts, err := n.leads.ListSegmentContacts(ctx, segment.ID, exclude)
	if err != nil {
		return nil, fmt.Errorf("list segment contacts: %w", err)
	}
	out := make([]node.Item, 0, len(contacts))
	for _, c := range contacts {
		item := node.Item{"segmentId": segmentID}
		for k, v := range c.Map() {
			item[k] = v
		}
		out = append(out, item)
	}
	return node.Items(out...), nil
}

// importLead creates the lead, or fills the empty columns of the lead with the same CRM id,
// then links it to the segment and its labels. linked reports a new segment membership.
func (n *Node) importLead(ctx context.Context, segment *segmentdomain.Segment, labels []int64, item node.Item) (linked bool, err error) {
	fields, err := leaddomain.FieldsFromItem(item)
	if err != nil {
		return false, err
	}
	if len(fields) == 0 {
		return false, ErrNoLeadFields
	}

	var leadID string
	var existing *leaddomain.Lead
	if crmID := leaddomain.CRMID(item); crmID != "" {
		if existing, err = n.leads.FindByCRMID(ctx, segment.CompanyID, crmID); err != nil {
			return false, fmt.Errorf("find lead: %w", err)
		}
	}
	if existing != nil {
		leadID = existing.ID
		if missing := fields.MissingIn(existing); len(missing) > 0 {
			if err := n.leads.Update(ctx, leadID, missing); err != nil {
				return false, fmt.Errorf("update lead: %w", err)
			}
		}
	} else {
		if leadID, err = n.leads.Create(ctx, segment.CompanyID, fields); err != nil {
			return false, fmt.Errorf("create lead: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(labels) == 0 {
			return nil
		}
		return n.leads.AssignLabels(gctx, leadID, labels)
	})
	g.Go(func() error {
		var err error
		linked, err = n.leads.AssignSegment(gctx, leadID, segment.ID, segment.CompanyID)
		return err
	})
	if err := g.Wait(); err != nil {
		return false, fmt.Errorf("assign lead: %w", err)
	}
	return linked, nil
}
