package server

import (
	"testing"

	"google.golang.org/grpc"
)

// mockServiceRegistrar implements grpc.ServiceRegistrar for testing.
type mockServiceRegistrar struct {
	callCount int
	services  []string
}

func (m *mockServiceRegistrar) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	m.callCount++
	m.services = append(m.services, desc.ServiceName)
}

func TestRegisterServices_AllServicesRegistered(t *testing.T) {
	mockReg := &mockServiceRegistrar{}
	RegisterServices(mockReg, Deps{})

	if mockReg.callCount != 2 {
		t.Fatalf("RegisterService called %d times, want 2", mockReg.callCount)
	}
	want := []string{"callflow.node.v1.NodeService", "grpc.health.v1.Health"}
	for i, name := range want {
		if mockReg.services[i] != name {
			t.Errorf("services[%d] = %q, want %q", i, mockReg.services[i], name)
		}
	}
}

func TestNewGRPCServer_RegistersOnRealServer(t *testing.T) {
	s := NewGRPCServer(Options{})
	defer s.Stop()

	// Should not panic with nil dependencies
	RegisterServices(s, Deps{})

	info := s.GetServiceInfo()
	node, ok := info["callflow.node.v1.NodeService"]
	if !ok {
		t.Fatal("NodeService not registered")
	}
	if len(node.Methods) != 4 {
		t.Errorf("NodeService has %d methods, want 4", len(node.Methods))
	}
	if _, ok := info["grpc.health.v1.Health"]; !ok {
		t.Error("Health not registered")
	}
}

func TestPublicMethods(t *testing.T) {
	if !PublicMethods["/grpc.health.v1.Health/Check"] {
		t.Error("health check should be public")
	}
	if PublicMethods["/callflow.node.v1.NodeService/Execute"] {
		t.Error("Execute should require auth")
	}
}
