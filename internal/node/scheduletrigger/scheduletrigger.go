// Package scheduletrigger implements the Schedule Trigger node, which starts a workflow on
// the business hours of its playbook.
package scheduletrigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"callflow/backend/internal/logging"
	"callflow/backend/internal/metrics"
	"callflow/backend/internal/node"
	schedcron "callflow/backend/internal/schedule/cron"
	scheduledomain "callflow/backend/internal/schedule/domain"
	"callflow/backend/internal/telemetry"
	telemetryotel "callflow/backend/internal/telemetry/otel"
	"callflow/backend/internal/trigger"
)

// Type is the node type name.
const Type = "scheduleTrigger"

// ScheduleRepo reads playbook business hours.
type ScheduleRepo interface {
	GetByPlaybook(ctx context.Context, playbookID string) (*scheduledomain.Details, error)
}

// WorkflowRepo syncs the workflow timezone.
type WorkflowRepo interface {
	UpdateTimezone(ctx context.Context, id, timezone string) error
}

// Scheduler registers cron schedules per workflow.
type Scheduler interface {
	Activate(workflowID, tz string, exprs []string, fire trigger.FireFunc) error
	Deactivate(workflowID string) bool
	Store() trigger.Store
}

// Engine starts workflow executions.
type Engine interface {
	EmitTrigger(ctx context.Context, workflowID string, payload map[string]any) error
}

// Node is the Schedule Trigger node.
type Node struct {
	schedules   ScheduleRepo
	workflows   WorkflowRepo
	scheduler   Scheduler
	engine      Engine
	frequency   int
	metrics     *metrics.Metrics
	instruments *telemetryotel.Instruments
	emitter     telemetry.EventEmitter
	logger      *slog.Logger
	now         func() time.Time
}

// New returns a Schedule Trigger node firing every frequency minutes inside business hours.
func New(schedules ScheduleRepo, workflows WorkflowRepo, scheduler Scheduler, engine Engine, frequency int, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{
		schedules: schedules,
		workflows: workflows,
		scheduler: scheduler,
		engine:    engine,
		frequency: frequency,
		logger:    logger,
		now:       time.Now,
	}
}

// WithMetrics sets the Prometheus and OTel recorders.
func (n *Node) WithMetrics(m *metrics.Metrics, in *telemetryotel.Instruments) *Node {
	n.metrics = m
	n.instruments = in
	return n
}

// WithTelemetry sets the emitter for trigger_fired events.
func (n *Node) WithTelemetry(e telemetry.EventEmitter) *Node {
	n.emitter = e
	return n
}

func (n *Node) Type() string { return Type }

type rule struct {
	expr       string
	recurrence schedcron.Recurrence
}

// plan loads the playbook schedule and turns it, plus any extra interval rules, into crons.
func (n *Node) plan(ctx context.Context, req *node.ExecuteRequest) (*scheduledomain.Details, []rule, error) {
	details, err := n.schedules.GetByPlaybook(ctx, req.WorkflowID)
	if err != nil {
		return nil, nil, fmt.Errorf("load schedule: %w", err)
	}
	if details == nil {
		return nil, nil, scheduledomain.ErrNoWorkingHours
	}
	rules := schedcron.ExpressionRules(schedcron.CreateCronIntervals(details.Hours, n.frequency))
	if len(rules) == 0 {
		return nil, nil, scheduledomain.ErrNoWorkingHours
	}
	extra, err := intervalRules(req)
	if err != nil {
		return nil, nil, err
	}
	rules = append(rules, extra...)

	out := make([]rule, len(rules))
	for i, r := range rules {
		out[i] = rule{expr: schedcron.ToCronExpression(r), recurrence: schedcron.IntervalToRecurrence(r, i)}
	}
	return details, out, nil
}

// intervalRules decodes the optional rule.interval parameter.
func intervalRules(req *node.ExecuteRequest) ([]schedcron.Rule, error) {
	v, ok := req.Map("rule")["interval"]
	if !ok || v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, node.InvalidInput(Type, "Invalid interval rules")
	}
	var rules []schedcron.Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, node.InvalidInput(Type, "Invalid interval rules")
	}
	return rules, nil
}

// Activate registers the workflow's crons and syncs its timezone with the playbook's.
func (n *Node) Activate(ctx context.Context, req *node.ExecuteRequest) error {
	details, rules, err := n.plan(ctx, req)
	if err != nil {
		return err
	}
	loc := details.Location()
	if details.IANATimezone != "" {
		if err := n.workflows.UpdateTimezone(ctx, req.WorkflowID, details.IANATimezone); err != nil {
			return fmt.Errorf("update workflow timezone: %w", err)
		}
	}
	exprs := make([]string, len(rules))
	for i, r := range rules {
		exprs[i] = r.expr
	}
	workflowID, userID := req.WorkflowID, req.UserID
	err = n.scheduler.Activate(workflowID, loc.String(), exprs, func(ctx context.Context, i int, at time.Time) {
		if _, err := n.fire(ctx, workflowID, userID, rules[i].recurrence, at, loc, true); err != nil {
			n.logger.ErrorContext(ctx, "scheduletrigger: fire failed", logging.WorkflowID(workflowID), logging.Error(err))
		}
	})
	if errors.Is(err, schedcron.ErrInvalidExpression) {
		return &node.OperationError{Node: Type, Message: schedcron.ErrInvalidExpression.Error(), Cause: err, ItemIndex: -1, InvalidInput: true}
	}
	return err
}

// Deactivate removes the workflow's crons and its static data.
func (n *Node) Deactivate(ctx context.Context, workflowID string) error {
	n.scheduler.Deactivate(workflowID)
	return n.scheduler.Store().Delete(ctx, workflowID)
}

// Execute fires once immediately in manual mode and returns the payload. In trigger mode it
// activates the schedule and returns no items.
func (n *Node) Execute(ctx context.Context, req *node.ExecuteRequest) (*node.ExecuteResponse, error) {
	if req.Mode != node.ModeManual {
		if err := n.Activate(ctx, req); err != nil {
			return nil, err
		}
		return node.Items(), nil
	}
	details, rules, err := n.plan(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := schedcron.Validate(rules[0].expr); err != nil {
		return nil, &node.OperationError{Node: Type, Message: schedcron.ErrInvalidExpression.Error(), Cause: err, ItemIndex: -1, InvalidInput: true}
	}
	payload, err := n.fire(ctx, req.WorkflowID, req.UserID, rules[0].recurrence, n.now(), details.Location(), false)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return node.Items(), nil
	}
	return node.Items(node.Item(payload)), nil
}

// fire applies the recurrence and start-date gates and builds the payload. emit sends it to
// the engine. A nil payload means the fire was gated.
func (n *Node) fire(ctx context.Context, workflowID, userID string, rec schedcron.Recurrence, at time.Time, loc *time.Location, emit bool) (map[string]any, error) {
	if rec.Activated {
		store := n.scheduler.Store()
		last, err := store.Load(ctx, workflowID)
		if err != nil {
			n.metrics.RecordTriggerFire("error")
			return nil, err
		}
		if !schedcron.RecurrenceCheck(rec, last, at.In(loc)) {
			n.metrics.RecordTriggerFire("throttled")
			return nil, nil
		}
		if err := store.Save(ctx, workflowID, last); err != nil {
			n.metrics.RecordTriggerFire("error")
			return nil, err
		}
	}

	details, err := n.schedules.GetByPlaybook(ctx, workflowID)
	if err != nil {
		n.metrics.RecordTriggerFire("error")
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if !details.StartDatePassed(at, loc) {
		n.metrics.RecordTriggerFire("not_started")
		return nil, nil
	}

	payload := Payload(at, loc)
	if emit {
		if err := n.engine.EmitTrigger(ctx, workflowID, payload); err != nil {
			n.metrics.RecordTriggerFire("error")
			return nil, err
		}
	}
	n.metrics.RecordTriggerFire("emitted")
	n.instruments.RecordTriggerFire(ctx)
	event := telemetry.NewEvent(telemetry.EventTriggerFired, Type, map[string]string{"timezone": loc.String()})
	event.WorkflowID = workflowID
	event.UserID = userID
	telemetry.EmitAsync(ctx, n.emitter, event)
	return payload, nil
}
