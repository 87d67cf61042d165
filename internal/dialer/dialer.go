// Package dialer places outbound calls and records their side effects.
package dialer

import (
	"context"
	"fmt"
	"log/slog"

	agentdomain "callflow/backend/internal/agent/domain"
	calldomain "callflow/backend/internal/call/domain"
	"callflow/backend/internal/callvars"
	companydomain "callflow/backend/internal/company/domain"
	leaddomain "callflow/backend/internal/lead/domain"
	"callflow/backend/internal/logging"
	"callflow/backend/internal/metrics"
	"callflow/backend/internal/retell"
	"callflow/backend/internal/telemetry"
	telemetryotel "callflow/backend/internal/telemetry/otel"
)

// CompanyRepo is the minimal company repository needed by the dialer.
type CompanyRepo interface {
	GetByID(ctx context.Context, id string) (*companydomain.Company, error)
}

// CallRepo is the minimal call repository needed by the dialer.
type CallRepo interface {
	CreateDetail(ctx context.Context, d *calldomain.Detail) (string, error)
	MarkCallbackServed(ctx context.Context, id string) error
	LogActivity(ctx context.Context, a *calldomain.ActivityLog) error
}

// LeadRepo is the minimal lead repository needed by the dialer.
type LeadRepo interface {
	UpdateStatus(ctx context.Context, id string, status leaddomain.Status) error
}

// Caller creates calls at the voice provider.
type Caller interface {
	CreatePhoneCall(ctx context.Context, req retell.PhoneCallRequest) (*retell.PhoneCall, error)
}

// CallerFactory builds a Caller for a company's API key.
type CallerFactory func(apiKey string) Caller

// RetellFactory returns a CallerFactory for the Retell API at baseURL.
func RetellFactory(baseURL string) CallerFactory {
	return func(apiKey string) Caller { return retell.NewClient(apiKey, baseURL) }
}

// Call describes one call to place.
type Call struct {
	Agent          *agentdomain.Agent
	CompanyID      string
	LeadID         string
	LeadPhone      string
	LeadPriority   string
	LeadProduct    string
	SegmentID      string
	PlaybookID     string
	WorkflowID     string
	UserID         string
	CallType       calldomain.Type
	Variables      map[string]any
	CallBackCallID string
}

// Result is the outcome of a placed call.
type Result struct {
	CallID     string
	CallStatus string
	DetailID   string
}

// Map renders the result as node output fields.
func (r *Result) Map() map[string]any {
	return map[string]any{
		"call_id":        r.CallID,
		"call_status":    r.CallStatus,
		"call_detail_id": r.DetailID,
	}
}

// Dialer creates provider calls and persists call details, activity and lead status.
type Dialer struct {
	companies   CompanyRepo
	calls       CallRepo
	leads       LeadRepo
	newCaller   CallerFactory
	emitter     telemetry.EventEmitter
	metrics     *metrics.Metrics
	instruments *telemetryotel.Instruments
	logger      *slog.Logger
}

// New returns a Dialer. Telemetry, metrics and instruments are optional and set with the With methods.
func New(companies CompanyRepo, calls CallRepo, leads LeadRepo, newCaller CallerFactory, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialer{companies: companies, calls: calls, leads: leads, newCaller: newCaller, logger: logger}
}

// WithTelemetry sets the emitter for call_placed events.
func (d *Dialer) WithTelemetry(e telemetry.EventEmitter) *Dialer {
	d.emitter = e
	return d
}

// WithMetrics sets the Prometheus and OTel recorders.
func (d *Dialer) WithMetrics(m *metrics.Metrics, in *telemetryotel.Instruments) *Dialer {
	d.metrics = m
	d.instruments = in
	return d
}

// Place creates the call at the provider using the company's key, stores the call detail
// (lead status calling), logs a call-started activity and marks the lead as calling.
func (d *Dialer) Place(ctx context.Context, c Call) (*Result, error) {
	if c.Agent == nil {
		return nil, agentdomain.ErrNoActiveAgent
	}
	if c.CallType == "" {
		c.CallType = calldomain.TypePhoneCall
	}
	company, err := d.companies.GetByID(ctx, c.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	if company == nil {
		return nil, companydomain.ErrRetellKeyMissing
	}
	apiKey, err := company.RetellKey()
	if err != nil {
		return nil, err
	}

	var voiceProvider any
	if p := callvars.VoiceProvider(c.Agent.Voice); p != "" {
		voiceProvider = p
	}
	call, err := d.newCaller(apiKey).CreatePhoneCall(ctx, retell.PhoneCallRequest{
		FromNumber:       c.Agent.PhoneNumber,
		ToNumber:         c.LeadPhone,
		DynamicVariables: c.Variables,
		Metadata:         map[string]any{"llm_model": c.Agent.LLMModel, "voice_provider": voiceProvider},
	})
	if err != nil {
		d.metrics.RecordCall(string(c.CallType), "failed")
		return nil, err
	}

	// The call is live; its records are written even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	detailID, err := d.calls.CreateDetail(ctx, &calldomain.Detail{
		AgentID:               c.Agent.ID,
		CurrentStatus:         call.CallStatus,
		ProviderCallID:        call.CallID,
		CompanyID:             c.CompanyID,
		LeadID:                c.LeadID,
		SegmentID:             c.SegmentID,
		LeadPriority:          c.LeadPriority,
		LeadProductOfInterest: c.LeadProduct,
		LeadStatus:            leaddomain.StatusCalling,
		CallType:              c.CallType,
		PlaybookID:            c.PlaybookID,
	})
	if err != nil {
		return nil, fmt.Errorf("store call details: %w", err)
	}
	if err := d.calls.LogActivity(ctx, &calldomain.ActivityLog{
		EntityID:   detailID,
		EntityType: leaddomain.EntityCallDetails,
		LeadID:     c.LeadID,
		CompanyID:  c.CompanyID,
		Activity:   leaddomain.ActivityCallStarted,
	}); err != nil {
		return nil, fmt.Errorf("log call activity: %w", err)
	}
	if err := d.leads.UpdateStatus(ctx, c.LeadID, leaddomain.StatusCalling); err != nil {
		return nil, fmt.Errorf("update lead status: %w", err)
	}
	if c.CallBackCallID != "" {
		if err := d.calls.MarkCallbackServed(ctx, c.CallBackCallID); err != nil {
			d.logger.WarnContext(ctx, "dialer: mark callback served failed",
				logging.CallID(c.CallBackCallID), logging.Error(err))
		}
	}

	d.metrics.RecordCall(string(c.CallType), "placed")
	d.instruments.RecordCall(ctx, string(c.CallType))
	event := telemetry.NewEvent(telemetry.EventCallPlaced, "dialer", map[string]string{
		"call_id":     call.CallID,
		"lead_id":     c.LeadID,
		"agent_id":    c.Agent.ID,
		"segment_id":  c.SegmentID,
		"playbook_id": c.PlaybookID,
		"call_type":   string(c.CallType),
	})
	event.CompanyID = c.CompanyID
	event.UserID = c.UserID
	event.WorkflowID = c.WorkflowID
	telemetry.EmitAsync(ctx, d.emitter, event)

	d.logger.InfoContext(ctx, "call placed",
		logging.CompanyID(c.CompanyID), logging.LeadID(c.LeadID), logging.AgentID(c.Agent.ID), logging.CallID(call.CallID))
	return &Result{CallID: call.CallID, CallStatus: call.CallStatus, DetailID: detailID}, nil
}
