package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the calling state of a lead.
type Status string

const (
	StatusNotContacted  Status = "not-contacted"
	StatusContacted     Status = "contacted"
	StatusCallBack      Status = "call-back"
	StatusCalling       Status = "calling"
	StatusNonResponsive Status = "non-responsive"
	StatusDoNotCall     Status = "do-not-call"
	StatusRetry         Status = "retry"
)

// EntityType names the table an activity log row points at.
type EntityType string

const (
	EntityLead        EntityType = "customers_and_leads"
	EntityCallDetails EntityType = "sdr_agents_call_details"
	EntityMeeting     EntityType = "user_meetings"
)

// Activity is the kind of event recorded in lead_activity_logs.
type Activity string

const (
	ActivityLeadAdded     Activity = "lead-added"
	ActivityChatStarted   Activity = "chat-started"
	ActivityCallStarted   Activity = "call-started"
	ActivityCallScheduled Activity = "call-scheduled"
)

// CustomField is a free-form {label, value} pair attached to a lead.
type CustomField struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// Lead is a contact that can be imported into segments and called.
type Lead struct {
	ID                string
	CompanyID         string
	SDRAgentID        string
	Name              string
	Email             string
	PhoneNumber       string
	CompanyName       string
	JobTitle          string
	City              string
	Country           string
	Source            string
	Priority          string
	ProductOfInterest string
	Status            Status
	CustomFields      []CustomField
	CRMMetadata       map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FirstName returns the first whitespace-separated word of Name.
func (l *Lead) FirstName() string {
	fields := strings.Fields(l.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Map renders the lead as a node output item keyed by column name.
func (l *Lead) Map() map[string]any {
	customFields := l.CustomFields
	if customFields == nil {
		customFields = []CustomField{}
	}
	fields := make([]any, len(customFields))
	for i, cf := range customFields {
		fields[i] = map[string]any{"label": cf.Label, "value": cf.Value}
	}
	var crm any
	if l.CRMMetadata != nil {
		crm = l.CRMMetadata
	}
	return map[string]any{
		"id":                  l.ID,
		"company_id":          l.CompanyID,
		"sdr_agent_id":        l.SDRAgentID,
		"name":                l.Name,
		"email":               l.Email,
		"phone_number":        l.PhoneNumber,
		"company_name":        l.CompanyName,
		"job_title":           l.JobTitle,
		"city":                l.City,
		"country":             l.Country,
		"source":              l.Source,
		"priority":            l.Priority,
		"product_of_interest": l.ProductOfInterest,
		"status":              string(l.Status),
		"custom_fields":       fields,
		"crm_metadata":        crm,
		"created_at":          l.CreatedAt,
		"updated_at":          l.UpdatedAt,
	}
}

// Details merges custom fields (label -> value) with the lead's own columns; columns win.
// Call scripts resolve template variables against this map.
func (l *Lead) Details() map[string]any {
	out := make(map[string]any, len(l.CustomFields)+16)
	for _, cf := range l.CustomFields {
		if cf.Label != "" {
			out[cf.Label] = cf.Value
		}
	}
	for k, v := range l.Map() {
		out[k] = v
	}
	return out
}

// importColumns are the item keys a contact import may write.
var importColumns = []string{
	"name", "email", "phone_number", "company_name", "job_title", "city", "country",
	"source", "priority", "product_of_interest", "custom_fields", "crm_metadata",
}

// ImportFields is a whitelisted column -> value set taken from an input item.
type ImportFields map[string]any

// FieldsFromItem keeps the importable, non-nil values of item. JSON columns are encoded.
func FieldsFromItem(item map[string]any) (ImportFields, error) {
	out := ImportFields{}
	for _, col := range importColumns {
		v, ok := item[col]
		if !ok || v == nil {
			continue
		}
		switch col {
		case "custom_fields", "crm_metadata":
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", col, err)
			}
			out[col] = raw
		default:
			out[col] = fmt.Sprint(v)
		}
	}
	return out, nil
}

// Columns returns the column names in a stable order.
func (f ImportFields) Columns() []string {
	cols := make([]string, 0, len(f))
	for _, c := range importColumns {
		if _, ok := f[c]; ok {
			cols = append(cols, c)
		}
	}
	return cols
}

// CRMID returns crm_metadata.id from an input item, or "".
func CRMID(item map[string]any) string {
	meta, ok := item["crm_metadata"].(map[string]any)
	if !ok {
		return ""
	}
	switch id := meta["id"].(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

// MissingIn returns the subset of f whose column is empty on existing.
func (f ImportFields) MissingIn(existing *Lead) ImportFields {
	current := map[string]bool{
		"name":                existing.Name != "",
		"email":               existing.Email != "",
		"phone_number":        existing.PhoneNumber != "",
		"company_name":        existing.CompanyName != "",
		"job_title":           existing.JobTitle != "",
		"city":                existing.City != "",
		"country":             existing.Country != "",
		"source":              existing.Source != "",
		"priority":            existing.Priority != "",
		"product_of_interest": existing.ProductOfInterest != "",
		"custom_fields":       len(existing.CustomFields) > 0,
		"crm_metadata":        len(existing.CRMMetadata) > 0,
	}
	out := ImportFields{}
	for col, v := range f {
		if !current[col] {
			out[col] = v
		}
	}
	return out
}
