package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"callflow/backend/internal/logging"
	"callflow/backend/internal/metrics"
	"callflow/backend/internal/telemetry"
	telemetryotel "callflow/backend/internal/telemetry/otel"
)

// Registry resolves nodes by type and records every execution.
type Registry struct {
	mu          sync.RWMutex
	nodes       map[string]Node
	metrics     *metrics.Metrics
	instruments *telemetryotel.Instruments
	emitter     telemetry.EventEmitter
	logger      *slog.Logger
}

// NewRegistry returns an empty registry. logger may be nil.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{nodes: map[string]Node{}, logger: logger}
}

// WithMetrics sets the Prometheus and OTel recorders.
func (r *Registry) WithMetrics(m *metrics.Metrics, in *telemetryotel.Instruments) *Registry {
	r.metrics = m
	r.instruments = in
	return r
}

// WithTelemetry sets the emitter for node_executed events.
func (r *Registry) WithTelemetry(e telemetry.EventEmitter) *Registry {
	r.emitter = e
	return r
}

// Register adds nodes. Registering a type twice is an error.
func (r *Registry) Register(nodes ...Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range nodes {
		if _, ok := r.nodes[n.Type()]; ok {
			return fmt.Errorf("node type %q already registered", n.Type())
		}
		r.nodes[n.Type()] = n
	}
	return nil
}

// Get returns the node of type t.
func (r *Registry) Get(t string) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[t]
	return n, ok
}

// Types returns the registered node types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.nodes))
	for t := range r.nodes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Execute runs the node of type t. Node failures are returned as *OperationError.
func (r *Registry) Execute(ctx context.Context, t string, req *ExecuteRequest) (*ExecuteResponse, error) {
	n, ok := r.Get(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, t)
	}
	if req == nil {
		req = &ExecuteRequest{}
	}
	if req.Mode == "" {
		req.Mode = ModeTrigger
	}

	start := time.Now()
	resp, err := n.Execute(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		err = NewOperationError(t, err)
	} else if resp == nil {
		resp = Items()
	}
	r.record(ctx, t, req, resp, err, elapsed)
	return resp, err
}

// LoadOptions returns the dynamic options of method for node type t.
func (r *Registry) LoadOptions(ctx context.Context, t, method string, req *ExecuteRequest) ([]Option, error) {
	n, ok := r.Get(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, t)
	}
	loader, ok := n.(OptionsLoader)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoOptions, t, method)
	}
	if req == nil {
		req = &ExecuteRequest{}
	}
	opts, err := loader.LoadOptions(ctx, method, req)
	if err != nil {
		if errors.Is(err, ErrNoOptions) {
			return nil, err
		}
		return nil, NewOperationError(t, err)
	}
	if opts == nil {
		opts = []Option{}
	}
	return opts, nil
}

// Activate registers the trigger of type t for req.WorkflowID.
func (r *Registry) Activate(ctx context.Context, t string, req *ExecuteRequest) error {
	trigger, err := r.trigger(t)
	if err != nil {
		return err
	}
	if err := trigger.Activate(ctx, req); err != nil {
		r.logger.WarnContext(ctx, "node: trigger activation failed",
			logging.NodeType(t), logging.WorkflowID(req.WorkflowID), logging.Error(err))
		return NewOperationError(t, err)
	}
	r.logger.InfoContext(ctx, "node: trigger activated", logging.NodeType(t), logging.WorkflowID(req.WorkflowID))
	return nil
}

// Deactivate removes the trigger of type t for workflowID.
func (r *Registry) Deactivate(ctx context.Context, t, workflowID string) error {
	trigger, err := r.trigger(t)
	if err != nil {
		return err
	}
	if err := trigger.Deactivate(ctx, workflowID); err != nil {
		return NewOperationError(t, err)
	}
	r.logger.InfoContext(ctx, "node: trigger deactivated", logging.NodeType(t), logging.WorkflowID(workflowID))
	return nil
}

func (r *Registry) trigger(t string) (TriggerNode, error) {
	n, ok := r.Get(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, t)
	}
	trigger, ok := n.(TriggerNode)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotTrigger, t)
	}
	return trigger, nil
}

func (r *Registry) record(ctx context.Context, t string, req *ExecuteRequest, resp *ExecuteResponse, err error, elapsed time.Duration) {
	outcome := "success"
	items := 0
	if err != nil {
		outcome = "error"
	} else {
		items = len(resp.Items)
	}
	r.metrics.RecordNode(t, outcome, elapsed)
	r.instruments.RecordNode(ctx, t, outcome, elapsed)

	attrs := []any{
		logging.NodeType(t),
		logging.WorkflowID(req.WorkflowID),
		slog.String("mode", string(req.Mode)),
		slog.Int("items", items),
		slog.Duration("elapsed", elapsed),
	}
	if err != nil {
		r.logger.WarnContext(ctx, "node: execution failed", append(attrs, logging.Error(err))...)
	} else {
		r.logger.InfoContext(ctx, "node: executed", attrs...)
	}

	meta := map[string]string{
		"node_type": t,
		"mode":      string(req.Mode),
		"outcome":   outcome,
		"items":     fmt.Sprint(items),
		"elapsed":   elapsed.String(),
	}
	if err != nil {
		meta["error"] = err.Error()
	}
	event := telemetry.NewEvent(telemetry.EventNodeExecuted, "node", meta)
	event.UserID = req.UserID
	event.WorkflowID = req.WorkflowID
	telemetry.EmitAsync(ctx, r.emitter, event)
}
