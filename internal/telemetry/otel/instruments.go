package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Instruments are the OTel counters recorded by nodes and the dialer.
type Instruments struct {
	nodeExecutions otelmetric.Int64Counter
	nodeDuration   otelmetric.Float64Histogram
	callsPlaced    otelmetric.Int64Counter
	triggerFires   otelmetric.Int64Counter
}

// NewInstruments creates the instruments on mp's "callflow" meter.
func NewInstruments(mp otelmetric.MeterProvider) (*Instruments, error) {
	meter := mp.Meter("callflow")
	var (
		in  Instruments
		err error
	)
	if in.nodeExecutions, err = meter.Int64Counter("callflow.node.executions",
		otelmetric.WithDescription("Node executions by type and outcome")); err != nil {
		return nil, err
	}
	if in.nodeDuration, err = meter.Float64Histogram("callflow.node.duration",
		otelmetric.WithUnit("s"), otelmetric.WithDescription("Node execution latency")); err != nil {
		return nil, err
	}
	if in.callsPlaced, err = meter.Int64Counter("callflow.calls.placed",
		otelmetric.WithDescription("Outbound calls created at the voice provider")); err != nil {
		return nil, err
	}
	if in.triggerFires, err = meter.Int64Counter("callflow.trigger.fires",
		otelmetric.WithDescription("Schedule trigger fires that emitted a payload")); err != nil {
		return nil, err
	}
	return &in, nil
}

// RecordNode counts one node execution and its latency. Nil-safe.
func (i *Instruments) RecordNode(ctx context.Context, nodeType, outcome string, d time.Duration) {
	if i == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("node_type", nodeType), attribute.String("outcome", outcome))
	i.nodeExecutions.Add(ctx, 1, attrs)
	i.nodeDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordCall counts one placed call. Nil-safe.
func (i *Instruments) RecordCall(ctx context.Context, callType string) {
	if i == nil {
		return
	}
	i.callsPlaced.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("call_type", callType)))
}

// RecordTriggerFire counts one emitted trigger payload. Nil-safe.
func (i *Instruments) RecordTriggerFire(ctx context.Context) {
	if i == nil {
		return
	}
	i.triggerFires.Add(ctx, 1)
}
