package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProviders_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, Config{Endpoint: endpoint, ServiceName: "callflow-server"})
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Errorf("NewProviders(%q) left a provider nil", endpoint)
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	}
}

func TestConfig_Resource(t *testing.T) {
	res, err := Config{ServiceName: "callflow-worker", Version: "1.4.0", Environment: "staging"}.Resource()
	if err != nil {
		t.Fatalf("Resource: %v", err)
	}
	want := map[string]string{
		"service.name":                "callflow-worker",
		"service.namespace":           ServiceNamespace,
		"service.version":             "1.4.0",
		"deployment.environment.name": "staging",
	}
	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}

	res, err = Config{ServiceName: "callflow-server"}.Resource()
	if err != nil {
		t.Fatalf("Resource: %v", err)
	}
	for _, kv := range res.Attributes() {
		if kv.Key == "deployment.environment.name" {
			t.Error("empty environment should not be set")
		}
	}
}

func TestCollectorTarget(t *testing.T) {
	testCases := []struct {
		endpoint string
		override bool
		target   string
		insecure bool
	}{
		{"localhost:4317", false, "localhost:4317", true},
		{"http://collector:4317/v1/traces", false, "collector:4317", true},
		{"https://collector:4317", false, "collector:4317", false},
		{"https://collector:4317", true, "collector:4317", true},
	}
	for _, tc := range testCases {
		target, insecure, err := collectorTarget(tc.endpoint, tc.override)
		if err != nil {
			t.Fatalf("collectorTarget(%q): %v", tc.endpoint, err)
		}
		if target != tc.target || insecure != tc.insecure {
			t.Errorf("collectorTarget(%q, %v) = %q, %v; want %q, %v", tc.endpoint, tc.override, target, insecure, tc.target, tc.insecure)
		}
	}
}

func TestNewProviders_InvalidURL(t *testing.T) {
	for _, endpoint := range []string{"://invalid", "http://[invalid", "http://"} {
		if _, err := NewProviders(context.Background(), Config{Endpoint: endpoint, ServiceName: "callflow-server"}); err == nil {
			t.Errorf("NewProviders(%q) should return error", endpoint)
		}
	}
}

func TestNewProviders_Collector(t *testing.T) {
	// gRPC exporters dial lazily, so this succeeds without a running collector.
	ctx := context.Background()
	providers, err := NewProviders(ctx, Config{Endpoint: "localhost:4317", Insecure: true, ServiceName: "callflow-server"})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
		t.Error("provider left nil")
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	cancel()
	_ = providers.Shutdown(shutdownCtx)
}

func TestSetGlobal(t *testing.T) {
	oldTP, oldMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(oldTP)
		otel.SetMeterProvider(oldMP)
	}()

	providers, err := NewProviders(context.Background(), Config{ServiceName: "callflow-server"})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	providers.SetGlobal()
	if otel.GetTracerProvider() == oldTP {
		t.Error("TracerProvider should be updated")
	}
	if otel.GetMeterProvider() == oldMP {
		t.Error("MeterProvider should be updated")
	}
}

func TestSetGlobal_PartialProviders(t *testing.T) {
	oldTP, oldMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(oldTP)
		otel.SetMeterProvider(oldMP)
	}()

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	(&Providers{TracerProvider: tp}).SetGlobal()
	if otel.GetTracerProvider() == oldTP {
		t.Error("TracerProvider should be updated")
	}
	if otel.GetMeterProvider() != oldMP {
		t.Error("MeterProvider should not change when nil")
	}
}
