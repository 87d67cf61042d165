package producer

import (
	"context"
	"testing"

	"callflow/backend/internal/telemetry"
)

var _ Producer = (*KafkaProducer)(nil)

func TestNewKafkaProducer_Disabled(t *testing.T) {
	if p := NewKafkaProducer(nil, "topic"); p != nil {
		t.Error("no brokers should disable the producer")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, ""); p != nil {
		t.Error("empty topic should disable the producer")
	}
}

func TestNewKafkaProducer_Configured(t *testing.T) {
	p := NewKafkaProducer([]string{"a:9092", "b:9092"}, "callflow-telemetry")
	if p == nil {
		t.Fatal("producer should be created")
	}
	defer p.Close()
	if p.Topic() != "callflow-telemetry" {
		t.Errorf("Topic() = %q", p.Topic())
	}
	if p.writer.Topic != "callflow-telemetry" {
		t.Errorf("writer topic = %q", p.writer.Topic)
	}
}

func TestKafkaProducer_NilSafe(t *testing.T) {
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &telemetry.Event{}); err != nil {
		t.Errorf("nil Emit = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil Close = %v", err)
	}
	if p.Topic() != "" {
		t.Error("nil Topic should be empty")
	}
}
