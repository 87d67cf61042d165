package telemetry

import (
	"encoding/json"
	"time"
)

// Event types emitted by the service.
const (
	EventNodeExecuted = "node_executed"
	EventCallPlaced   = "call_placed"
	EventTriggerFired = "trigger_fired"
	EventGRPCRequest  = "grpc_request"
	EventHTTPRequest  = "http_request"
)

// Event is a telemetry record. It is the Kafka message value (JSON) and the source of OTel log records.
type Event struct {
	CompanyID  string          `json:"companyId,omitempty"`
	UserID     string          `json:"userId,omitempty"`
	WorkflowID string          `json:"workflowId,omitempty"`
	EventType  string          `json:"eventType"`
	Source     string          `json:"source"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// NewEvent returns an event stamped with the current UTC time. metadata is JSON-encoded;
// encoding failures leave Metadata empty.
func NewEvent(eventType, source string, metadata any) *Event {
	e := &Event{EventType: eventType, Source: source, CreatedAt: time.Now().UTC()}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			e.Metadata = raw
		}
	}
	return e
}
