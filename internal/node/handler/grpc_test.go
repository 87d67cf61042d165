package handler

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"callflow/backend/internal/node"
	"callflow/backend/internal/server/interceptors"
)

// echoNode returns its parameters merged into each input item.
type echoNode struct{}

func (echoNode) Type() string { return "echo" }

func (echoNode) Execute(ctx context.Context, req *node.ExecuteRequest) (*node.ExecuteResponse, error) {
	if req.String("fail") != "" {
		return nil, node.InvalidInput("echo", req.String("fail"))
	}
	out := make([]node.Item, 0, len(req.Items))
	for _, item := range req.Items {
		merged := node.Item{"userId": req.UserID, "mode": string(req.Mode)}
		for k, v := range item {
			merged[k] = v
		}
		out = append(out, merged)
	}
	return node.Items(out...), nil
}

func (echoNode) LoadOptions(ctx context.Context, method string, req *node.ExecuteRequest) ([]node.Option, error) {
	if method != "getThings" {
		return nil, node.ErrNoOptions
	}
	return []node.Option{{Name: "One", Value: "1"}}, nil
}

// tickNode is a trigger recording activations.
type tickNode struct {
	active map[string]bool
	err    error
}

func (n *tickNode) Type() string { return "tick" }

func (n *tickNode) Execute(ctx context.Context, req *node.ExecuteRequest) (*node.ExecuteResponse, error) {
	return node.Items(), nil
}

func (n *tickNode) Activate(ctx context.Context, req *node.ExecuteRequest) error {
	if n.err != nil {
		return n.err
	}
	n.active[req.WorkflowID] = true
	return nil
}

func (n *tickNode) Deactivate(ctx context.Context, workflowID string) error {
	delete(n.active, workflowID)
	return nil
}

func newTestServer(t *testing.T) (*Server, *tickNode) {
	t.Helper()
	tick := &tickNode{active: map[string]bool{}}
	reg := node.NewRegistry(nil)
	if err := reg.Register(echoNode{}, tick); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return NewServer(reg), tick
}

// asUser returns a context authenticated as userID with role.
func asUser(userID, role string) context.Context {
	return interceptors.WithIdentity(context.Background(), userID, "c-1", role)
}

// scopeFunc decides scopes in tests.
type scopeFunc func(role, scope string) (bool, error)

func (f scopeFunc) Allowed(ctx context.Context, companyID, role, scope string) (bool, error) {
	return f(role, scope)
}

func engineOnly(role, scope string) (bool, error) {
	return role == "global:engine" && scope == "node:actAs", nil
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func TestExecute(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := srv.Execute(asUser("u-1", "global:member"), mustStruct(t, map[string]any{
		"nodeType": "echo",
		"userId":   "u-1",
		"mode":     "manual",
		"items":    []any{map[string]any{"name": "Ada"}},
	}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	items := resp.AsMap()["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	item := items[0].(map[string]any)
	if item["name"] != "Ada" || item["userId"] != "u-1" || item["mode"] != "manual" {
		t.Errorf("item = %v", item)
	}
}

func TestExecute_UserIDFromContext(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := interceptors.WithIdentity(context.Background(), "ctx-user", "c-1", "admin")
	resp, err := srv.Execute(ctx, mustStruct(t, map[string]any{
		"nodeType": "echo",
		"items":    []any{map[string]any{}},
	}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	item := resp.AsMap()["items"].([]any)[0].(map[string]any)
	if item["userId"] != "ctx-user" {
		t.Errorf("userId = %v, want ctx-user", item["userId"])
	}
	if item["mode"] != "trigger" {
		t.Errorf("mode = %v, want trigger default", item["mode"])
	}
}

func TestExecute_RequiresIdentity(t *testing.T) {
	srv, _ := newTestServer(t)
	_, err := srv.Execute(context.Background(), mustStruct(t, map[string]any{"nodeType": "echo", "userId": "u-1"}))
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestExecute_OtherUserID(t *testing.T) {
	in := map[string]any{
		"nodeType": "echo",
		"userId":   "u-B",
		"items":    []any{map[string]any{}},
	}
	testCases := []struct {
		name     string
		scopes   scopeFunc
		role     string
		code     codes.Code
		wantUser string
	}{
		{"no scope checker", nil, "global:engine", codes.PermissionDenied, ""},
		{"caller lacks scope", engineOnly, "global:owner", codes.PermissionDenied, ""},
		{"scope check fails", func(string, string) (bool, error) { return false, errors.New("opa down") }, "global:engine", codes.Internal, ""},
		{"engine acts as user", engineOnly, "global:engine", codes.OK, "u-B"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t)
			if tc.scopes != nil {
				srv.WithScopes(tc.scopes)
			}
			resp, err := srv.Execute(asUser("u-A", tc.role), mustStruct(t, in))
			if status.Code(err) != tc.code {
				t.Fatalf("code = %v, want %v (err %v)", status.Code(err), tc.code, err)
			}
			if tc.code != codes.OK {
				return
			}
			item := resp.AsMap()["items"].([]any)[0].(map[string]any)
			if item["userId"] != tc.wantUser {
				t.Errorf("userId = %v, want %v", item["userId"], tc.wantUser)
			}
		})
	}
}

func TestActivateTrigger_OtherUserID(t *testing.T) {
	srv, tick := newTestServer(t)
	_, err := srv.ActivateTrigger(asUser("u-A", "global:admin"), mustStruct(t, map[string]any{
		"nodeType": "tick", "workflowId": "wf-2", "userId": "u-B",
	}))
	if status.Code(err) != codes.PermissionDenied {
		t.Errorf("code = %v, want PermissionDenied", status.Code(err))
	}
	if tick.active["wf-2"] {
		t.Error("wf-2 must not be activated for another user")
	}
}

func TestExecute_Errors(t *testing.T) {
	srv, _ := newTestServer(t)
	testCases := []struct {
		name string
		in   map[string]any
		code codes.Code
	}{
		{"missing node type", map[string]any{}, codes.InvalidArgument},
		{"unknown node", map[string]any{"nodeType": "nope"}, codes.NotFound},
		{"invalid input", map[string]any{"nodeType": "echo", "parameters": map[string]any{"fail": "bad"}}, codes.InvalidArgument},
		{"malformed items", map[string]any{"nodeType": "echo", "items": "x"}, codes.InvalidArgument},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := srv.Execute(asUser("u-1", "global:member"), mustStruct(t, tc.in))
			if status.Code(err) != tc.code {
				t.Errorf("code = %v, want %v (err %v)", status.Code(err), tc.code, err)
			}
		})
	}
}

func TestLoadOptions(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := asUser("u-1", "global:member")
	resp, err := srv.LoadOptions(ctx, mustStruct(t, map[string]any{"nodeType": "echo", "method": "getThings"}))
	if err != nil {
		t.Fatalf("LoadOptions: %v", err)
	}
	opts := resp.AsMap()["options"].([]any)
	if len(opts) != 1 || opts[0].(map[string]any)["name"] != "One" {
		t.Errorf("options = %v", opts)
	}

	_, err = srv.LoadOptions(ctx, mustStruct(t, map[string]any{"nodeType": "echo", "method": "getOther"}))
	if status.Code(err) != codes.NotFound {
		t.Errorf("code = %v, want NotFound", status.Code(err))
	}
	_, err = srv.LoadOptions(ctx, mustStruct(t, map[string]any{"nodeType": "echo"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestTriggerLifecycle(t *testing.T) {
	srv, tick := newTestServer(t)
	ctx := asUser("u-1", "global:member")
	in := mustStruct(t, map[string]any{"nodeType": "tick", "workflowId": "wf-1"})

	if _, err := srv.ActivateTrigger(ctx, in); err != nil {
		t.Fatalf("ActivateTrigger: %v", err)
	}
	if !tick.active["wf-1"] {
		t.Error("wf-1 should be active")
	}
	if _, err := srv.DeactivateTrigger(ctx, in); err != nil {
		t.Fatalf("DeactivateTrigger: %v", err)
	}
	if tick.active["wf-1"] {
		t.Error("wf-1 should be inactive")
	}

	_, err := srv.ActivateTrigger(ctx, mustStruct(t, map[string]any{"nodeType": "echo", "workflowId": "wf-1"}))
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("non-trigger code = %v, want FailedPrecondition", status.Code(err))
	}
	_, err = srv.ActivateTrigger(ctx, mustStruct(t, map[string]any{"nodeType": "tick"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("missing workflow code = %v, want InvalidArgument", status.Code(err))
	}

	tick.err = errors.New("scheduler down")
	_, err = srv.ActivateTrigger(ctx, in)
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("activation failure code = %v, want FailedPrecondition", status.Code(err))
	}
}

func TestNilRegistry(t *testing.T) {
	srv := NewServer(nil)
	_, err := srv.Execute(context.Background(), &structpb.Struct{})
	if status.Code(err) != codes.Unimplemented {
		t.Errorf("code = %v, want Unimplemented", status.Code(err))
	}
}

func TestToStatus(t *testing.T) {
	testCases := []struct {
		err  error
		code codes.Code
	}{
		{&node.OperationError{Message: "x", ItemIndex: -1}, codes.FailedPrecondition},
		{node.InvalidInput("n", "x"), codes.InvalidArgument},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range testCases {
		if got := status.Code(toStatus(tc.err)); got != tc.code {
			t.Errorf("toStatus(%v) = %v, want %v", tc.err, got, tc.code)
		}
	}
}

func TestServiceOverGRPC(t *testing.T) {
	srv, _ := newTestServer(t)
	lis := bufconn.Listen(1 << 20)
	var seen []string
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, h grpc.UnaryHandler) (any, error) {
		seen = append(seen, info.FullMethod)
		return h(interceptors.WithIdentity(ctx, "u-9", "c-1", "global:member"), req)
	}))
	RegisterNodeServiceServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	client := NewClient(conn)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-request-id", "r-1")
	out, err := client.Invoke(ctx, ExecuteMethod, map[string]any{
		"nodeType": "echo",
		"userId":   "u-9",
		"items":    []any{map[string]any{"n": 1.0}},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	item := out["items"].([]any)[0].(map[string]any)
	if item["n"] != 1.0 || item["userId"] != "u-9" {
		t.Errorf("item = %v", item)
	}
	if len(seen) != 1 || seen[0] != ExecuteMethod {
		t.Errorf("interceptor saw %v", seen)
	}

	_, err = client.Invoke(ctx, LoadOptionsMethod, map[string]any{"nodeType": "nope", "method": "x"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("code = %v, want NotFound", status.Code(err))
	}
}
