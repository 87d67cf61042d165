package audit

import "strings"

// ActionResource holds action and resource derived from a gRPC method or HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// Node service overrides: triggers are audited as their own resource.
var methodOverrides = map[string]ActionResource{
	"/callflow.node.v1.NodeService/Execute":           {Action: "execute", Resource: "node"},
	"/callflow.node.v1.NodeService/LoadOptions":       {Action: "load_options", Resource: "node"},
	"/callflow.node.v1.NodeService/ActivateTrigger":   {Action: "activate", Resource: "trigger"},
	"/callflow.node.v1.NodeService/DeactivateTrigger": {Action: "deactivate", Resource: "trigger"},
}

// ParseFullMethod returns action and resource for a gRPC full method (e.g. /callflow.node.v1.NodeService/Execute).
// Action is a verb: get, list, create, update, delete, or a lowercase method name for others.
// Resource is derived from the service name (e.g. UserService -> user).
func ParseFullMethod(fullMethod string) ActionResource {
	if ar, ok := methodOverrides[fullMethod]; ok {
		return ar
	}
	// fullMethod format: /package.v1.ServiceName/MethodName
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	resource := lowerFirst(strings.TrimSuffix(beforeSlash[dot+1:], "Service"))
	if resource == "" {
		resource = "unknown"
	}
	return ActionResource{Action: methodToAction(method), Resource: resource}
}

func methodToAction(method string) string {
	switch {
	case strings.HasPrefix(method, "Get") && method != "Get":
		return "get"
	case strings.HasPrefix(method, "List"):
		return "list"
	case strings.HasPrefix(method, "Create"):
		return "create"
	case strings.HasPrefix(method, "Update"):
		return "update"
	case strings.HasPrefix(method, "Delete"):
		return "delete"
	case strings.HasPrefix(method, "Activate"):
		return "activate"
	case strings.HasPrefix(method, "Deactivate"):
		return "deactivate"
	case strings.HasPrefix(method, "Revoke"):
		return "revoke"
	default:
		return strings.ToLower(method)
	}
}

// ParseHTTPRoute maps an HTTP method and gin route pattern to an action on the route's
// first resource segment after /api/v1, e.g. DELETE /api/v1/users/:id -> delete user.
func ParseHTTPRoute(method, route string) ActionResource {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(route, "/api/v1"), "/"), "/")
	resource := "unknown"
	if len(parts) > 0 && parts[0] != "" {
		resource = strings.TrimSuffix(parts[0], "s")
	}
	last := parts[len(parts)-1]
	switch {
	case last == "revoke":
		return ActionResource{Action: "revoke", Resource: "token"}
	case last == "role":
		return ActionResource{Action: "role_changed", Resource: resource}
	case last == "auth":
		return ActionResource{Action: "issue_token", Resource: resource}
	}
	switch strings.ToUpper(method) {
	case "GET":
		if len(parts) > 1 {
			return ActionResource{Action: "get", Resource: resource}
		}
		return ActionResource{Action: "list", Resource: resource}
	case "POST":
		return ActionResource{Action: "create", Resource: resource}
	case "PUT", "PATCH":
		return ActionResource{Action: "update", Resource: resource}
	case "DELETE":
		return ActionResource{Action: "delete", Resource: resource}
	}
	return ActionResource{Action: strings.ToLower(method), Resource: resource}
}

func lowerFirst(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToLower(s[:1]) + s[1:]
}
