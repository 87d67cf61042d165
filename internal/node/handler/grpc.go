// Package handler exposes the node registry as the callflow.node.v1.NodeService gRPC service.
// Messages are google.protobuf.Struct so node parameters and items stay schemaless.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"callflow/backend/internal/node"
	"callflow/backend/internal/platform/rbac"
	"callflow/backend/internal/server/interceptors"
)

// ServiceName is the full gRPC service name.
const ServiceName = "callflow.node.v1.NodeService"

// Full method names, used for interceptor skip lists and clients.
const (
	ExecuteMethod           = "/" + ServiceName + "/Execute"
	LoadOptionsMethod       = "/" + ServiceName + "/LoadOptions"
	ActivateTriggerMethod   = "/" + ServiceName + "/ActivateTrigger"
	DeactivateTriggerMethod = "/" + ServiceName + "/DeactivateTrigger"
)

// Registry runs nodes by type.
type Registry interface {
	Execute(ctx context.Context, t string, req *node.ExecuteRequest) (*node.ExecuteResponse, error)
	LoadOptions(ctx context.Context, t, method string, req *node.ExecuteRequest) ([]node.Option, error)
	Activate(ctx context.Context, t string, req *node.ExecuteRequest) error
	Deactivate(ctx context.Context, t, workflowID string) error
}

// NodeServiceServer is the server API of NodeService.
type NodeServiceServer interface {
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadOptions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ActivateTrigger(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeactivateTrigger(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Server implements NodeServiceServer over a node registry.
type Server struct {
	registry Registry
	scopes   rbac.ScopeChecker
}

// NewServer returns a NodeService server. A nil registry makes every RPC Unimplemented.
func NewServer(registry Registry) *Server {
	return &Server{registry: registry}
}

// WithScopes lets callers granted node:actAs run nodes as another workflow user via userId.
// Without it a request userId must match the authenticated user.
func (s *Server) WithScopes(checker rbac.ScopeChecker) *Server {
	s.scopes = checker
	return s
}

// RegisterNodeServiceServer registers srv on s.
func RegisterNodeServiceServer(s grpc.ServiceRegistrar, srv NodeServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// request is the wire shape of every NodeService request.
type request struct {
	NodeType       string           `json:"nodeType"`
	Method         string           `json:"method,omitempty"`
	UserID         string           `json:"userId"`
	WorkflowID     string           `json:"workflowId"`
	WorkflowName   string           `json:"workflowName"`
	WorkflowActive bool             `json:"workflowActive"`
	Timezone       string           `json:"timezone"`
	Mode           node.Mode        `json:"mode"`
	Parameters     map[string]any   `json:"parameters"`
	ItemParameters []map[string]any `json:"itemParameters"`
	Items          []node.Item      `json:"items"`
	ContinueOnFail bool             `json:"continueOnFail"`
}

func (s *Server) decode(ctx context.Context, in *structpb.Struct) (*request, *node.ExecuteRequest, error) {
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return nil, nil, status.Error(codes.InvalidArgument, "malformed request")
	}
	var r request
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, nil, status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	if r.NodeType == "" {
		return nil, nil, status.Error(codes.InvalidArgument, "nodeType is required")
	}
	if r.UserID, err = s.runAs(ctx, r.UserID); err != nil {
		return nil, nil, err
	}
	return &r, &node.ExecuteRequest{
		UserID:         r.UserID,
		WorkflowID:     r.WorkflowID,
		WorkflowName:   r.WorkflowName,
		WorkflowActive: r.WorkflowActive,
		Timezone:       r.Timezone,
		Mode:           r.Mode,
		Parameters:     r.Parameters,
		ItemParameters: r.ItemParameters,
		Items:          r.Items,
		ContinueOnFail: r.ContinueOnFail,
	}, nil
}

// runAs returns the workflow user a request executes as: the authenticated user, or the
// requested userId when the caller holds node:actAs.
func (s *Server) runAs(ctx context.Context, requested string) (string, error) {
	caller, ok := interceptors.GetUserID(ctx)
	if !ok || caller == "" {
		return "", status.Error(codes.Unauthenticated, "user context required")
	}
	if requested == "" || requested == caller {
		return caller, nil
	}
	if s.scopes == nil {
		return "", status.Error(codes.PermissionDenied, "userId does not match the authenticated user")
	}
	if _, _, err := rbac.RequireScope(ctx, s.scopes, rbac.ScopeNodeActAs); err != nil {
		if status.Code(err) == codes.PermissionDenied {
			return "", status.Error(codes.PermissionDenied, "userId does not match the authenticated user")
		}
		return "", err
	}
	return requested, nil
}

// encode converts v to a Struct through JSON so named map and slice types are accepted.
func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// toStatus maps registry errors to gRPC codes.
func toStatus(err error) error {
	var opErr *node.OperationError
	switch {
	case errors.As(err, &opErr):
		code := codes.FailedPrecondition
		if opErr.InvalidInput {
			code = codes.InvalidArgument
		}
		return status.Error(code, opErr.Error())
	case errors.Is(err, node.ErrUnknownNode), errors.Is(err, node.ErrNoOptions):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, node.ErrNotTrigger):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Execute runs a node and returns {items}.
func (s *Server) Execute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.registry == nil {
		return nil, status.Error(codes.Unimplemented, "method Execute not implemented")
	}
	r, req, err := s.decode(ctx, in)
	if err != nil {
		return nil, err
	}
	resp, err := s.registry.Execute(ctx, r.NodeType, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(map[string]any{"items": resp.Items})
}

// LoadOptions returns {options} for the node's dynamic parameter method.
func (s *Server) LoadOptions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.registry == nil {
		return nil, status.Error(codes.Unimplemented, "method LoadOptions not implemented")
	}
	r, req, err := s.decode(ctx, in)
	if err != nil {
		return nil, err
	}
	if r.Method == "" {
		return nil, status.Error(codes.InvalidArgument, "method is required")
	}
	opts, err := s.registry.LoadOptions(ctx, r.NodeType, r.Method, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(map[string]any{"options": opts})
}

// ActivateTrigger registers the trigger node's schedule for workflowId.
func (s *Server) ActivateTrigger(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.registry == nil {
		return nil, status.Error(codes.Unimplemented, "method ActivateTrigger not implemented")
	}
	r, req, err := s.decode(ctx, in)
	if err != nil {
		return nil, err
	}
	if r.WorkflowID == "" {
		return nil, status.Error(codes.InvalidArgument, "workflowId is required")
	}
	if err := s.registry.Activate(ctx, r.NodeType, req); err != nil {
		return nil, toStatus(err)
	}
	return encode(map[string]any{"workflowId": r.WorkflowID, "active": true})
}

// DeactivateTrigger removes the trigger node's schedule for workflowId.
func (s *Server) DeactivateTrigger(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.registry == nil {
		return nil, status.Error(codes.Unimplemented, "method DeactivateTrigger not implemented")
	}
	r, _, err := s.decode(ctx, in)
	if err != nil {
		return nil, err
	}
	if r.WorkflowID == "" {
		return nil, status.Error(codes.InvalidArgument, "workflowId is required")
	}
	if err := s.registry.Deactivate(ctx, r.NodeType, r.WorkflowID); err != nil {
		return nil, toStatus(err)
	}
	return encode(map[string]any{"workflowId": r.WorkflowID, "active": false})
}

func unaryHandler(method string, call func(NodeServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(NodeServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(NodeServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

// ServiceDesc is the grpc.ServiceDesc for NodeService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NodeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: unaryHandler(ExecuteMethod, NodeServiceServer.Execute)},
		{MethodName: "LoadOptions", Handler: unaryHandler(LoadOptionsMethod, NodeServiceServer.LoadOptions)},
		{MethodName: "ActivateTrigger", Handler: unaryHandler(ActivateTriggerMethod, NodeServiceServer.ActivateTrigger)},
		{MethodName: "DeactivateTrigger", Handler: unaryHandler(DeactivateTriggerMethod, NodeServiceServer.DeactivateTrigger)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "callflow/node/v1/node.proto",
}

// Client calls NodeService on conn.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient returns a NodeService client.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Invoke calls the full method name with in and returns the response struct.
func (c *Client) Invoke(ctx context.Context, method string, in map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, req, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
