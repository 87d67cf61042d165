// Package domain models placed calls, lead activity and playbook executions.
package domain

import (
	"errors"
	"time"

	leaddomain "callflow/backend/internal/lead/domain"
)

// Type is the kind of call placed through the voice provider.
type Type string

const (
	TypePhoneCall Type = "phone_call"
	TypeWebCall   Type = "web_call"
)

// Detail is one sdr_agents_call_details row.
type Detail struct {
	ID                    string
	AgentID               string
	CurrentStatus         string
	ProviderCallID        string
	CompanyID             string
	LeadID                string
	SegmentID             string
	LeadPriority          string
	LeadProductOfInterest string
	LeadStatus            leaddomain.Status
	CallType              Type
	PlaybookID            string
	IsCallbackRequested   bool
	CallbackAt            *time.Time
	IsCallback            bool
	CreatedAt             time.Time
}

// Validate checks the fields required to store a call.
func (d *Detail) Validate() error {
	if d.AgentID == "" {
		return errors.New("call detail: agent id is required")
	}
	if d.CompanyID == "" {
		return errors.New("call detail: company id is required")
	}
	if d.LeadID == "" {
		return errors.New("call detail: lead id is required")
	}
	return nil
}

// ActivityLog is one lead_activity_logs row.
type ActivityLog struct {
	ID         string
	EntityID   string
	EntityType leaddomain.EntityType
	LeadID     string
	CompanyID  string
	Activity   leaddomain.Activity
	CreatedAt  time.Time
}

// Execution records one CallAgent/CallProcessor run of a playbook.
type Execution struct {
	ID           string
	PlaybookID   string
	PlaybookName string
	AgentID      string
	SegmentID    string
	IsActive     bool
	CallsPlaced  int
	StartedAt    time.Time
	FinishedAt   *time.Time
}
