package audit

import "testing"

func TestParseFullMethod(t *testing.T) {
	testCases := []struct {
		fullMethod string
		action     string
		resource   string
	}{
		{"/callflow.node.v1.NodeService/Execute", "execute", "node"},
		{"/callflow.node.v1.NodeService/LoadOptions", "load_options", "node"},
		{"/callflow.node.v1.NodeService/ActivateTrigger", "activate", "trigger"},
		{"/callflow.node.v1.NodeService/DeactivateTrigger", "deactivate", "trigger"},
		{"/callflow.node.v1.NodeService/ListNodes", "list", "node"},
		{"/callflow.user.v1.UserService/GetUser", "get", "user"},
		{"/callflow.user.v1.UserService/DeleteUser", "delete", "user"},
		{"/callflow.user.v1.UserService/Ping", "ping", "user"},
		{"/grpc.health.v1.Health/Check", "check", "health"},
		{"NoSlash", "unknown", "unknown"},
		{"/NoDot/Method", "method", "unknown"},
		{"/pkg.Service/Get", "get", "unknown"},
	}
	for _, tc := range testCases {
		t.Run(tc.fullMethod, func(t *testing.T) {
			ar := ParseFullMethod(tc.fullMethod)
			if ar.Action != tc.action {
				t.Errorf("action = %q, want %q", ar.Action, tc.action)
			}
			if ar.Resource != tc.resource {
				t.Errorf("resource = %q, want %q", ar.Resource, tc.resource)
			}
		})
	}
}

func TestParseHTTPRoute(t *testing.T) {
	testCases := []struct {
		method   string
		route    string
		action   string
		resource string
	}{
		{"GET", "/api/v1/users", "list", "user"},
		{"GET", "/api/v1/users/:id", "get", "user"},
		{"POST", "/api/v1/users", "create", "user"},
		{"DELETE", "/api/v1/users/:id", "delete", "user"},
		{"PATCH", "/api/v1/users/:id/role", "role_changed", "user"},
		{"POST", "/api/v1/users/auth/revoke", "revoke", "token"},
		{"GET", "/api/v1/users/:id/auth", "issue_token", "user"},
		{"GET", "/api/v1/audit-logs", "list", "audit-log"},
		{"OPTIONS", "/api/v1/users", "options", "user"},
		{"GET", "/", "list", "unknown"},
	}
	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.route, func(t *testing.T) {
			ar := ParseHTTPRoute(tc.method, tc.route)
			if ar.Action != tc.action {
				t.Errorf("action = %q, want %q", ar.Action, tc.action)
			}
			if ar.Resource != tc.resource {
				t.Errorf("resource = %q, want %q", ar.Resource, tc.resource)
			}
		})
	}
}
