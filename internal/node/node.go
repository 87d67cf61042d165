// Package node defines the workflow node contract and the registry that executes nodes by type.
package node

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode is how the engine started the execution.
type Mode string

const (
	ModeManual  Mode = "manual"
	ModeTrigger Mode = "trigger"
)

// Item is one JSON input or output item.
type Item map[string]any

// ExecuteRequest carries one node execution from the engine.
type ExecuteRequest struct {
	UserID         string
	WorkflowID     string
	WorkflowName   string
	WorkflowActive bool
	Timezone       string
	Mode           Mode
	Parameters     map[string]any
	// ItemParameters optionally holds parameters resolved per input item; entry i overrides
	// Parameters for item i.
	ItemParameters []map[string]any
	Items          []Item
	ContinueOnFail bool
}

// ExecuteResponse holds the node's output items.
type ExecuteResponse struct {
	Items []Item
}

// Items wraps output items in a response.
func Items(items ...Item) *ExecuteResponse {
	if items == nil {
		items = []Item{}
	}
	return &ExecuteResponse{Items: items}
}

// Node is a workflow node.
type Node interface {
	Type() string
	Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error)
}

// Option is one entry of a dynamic parameter option list.
type Option struct {
	Name        string `json:"name"`
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
}

// OptionsLoader is implemented by nodes with dynamic parameter options.
type OptionsLoader interface {
	LoadOptions(ctx context.Context, method string, req *ExecuteRequest) ([]Option, error)
}

// TriggerNode is a node that starts workflows on its own schedule once activated.
type TriggerNode interface {
	Node
	Activate(ctx context.Context, req *ExecuteRequest) error
	Deactivate(ctx context.Context, workflowID string) error
}

// ForItem returns the request with the parameters resolved for input item i.
func (r *ExecuteRequest) ForItem(i int) *ExecuteRequest {
	if i < 0 || i >= len(r.ItemParameters) || len(r.ItemParameters[i]) == 0 {
		return r
	}
	merged := make(map[string]any, len(r.Parameters)+len(r.ItemParameters[i]))
	for k, v := range r.Parameters {
		merged[k] = v
	}
	for k, v := range r.ItemParameters[i] {
		merged[k] = v
	}
	cp := *r
	cp.Parameters = merged
	return &cp
}

// Param returns the raw parameter value.
func (r *ExecuteRequest) Param(name string) (any, bool) {
	if r == nil || r.Parameters == nil {
		return nil, false
	}
	v, ok := r.Parameters[name]
	return v, ok && v != nil
}

// String returns a parameter as a string. Numbers are formatted without a trailing ".0".
func (r *ExecuteRequest) String(name string) string {
	v, ok := r.Param(name)
	if !ok {
		return ""
	}
	return toString(v)
}

// StringSlice returns a list parameter as strings. A single value becomes a one-element list.
func (r *ExecuteRequest) StringSlice(name string) []string {
	v, ok := r.Param(name)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s := toString(e); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	default:
		if s := toString(t); s != "" {
			return []string{s}
		}
		return nil
	}
}

// Int returns an integer parameter or def when absent or not a number.
func (r *ExecuteRequest) Int(name string, def int) int {
	v, ok := r.Param(name)
	if !ok {
		return def
	}
	return toInt(v, def)
}

// Bool returns a boolean parameter or def when absent.
func (r *ExecuteRequest) Bool(name string, def bool) bool {
	v, ok := r.Param(name)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Map returns an object parameter, or nil.
func (r *ExecuteRequest) Map(name string) map[string]any {
	v, ok := r.Param(name)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

// Location returns the workflow timezone, UTC when unset or unknown.
func (r *ExecuteRequest) Location() *time.Location {
	if r == nil || r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ItemString returns item[key] as a string.
func ItemString(item Item, key string) string {
	v, ok := item[key]
	if !ok || v == nil {
		return ""
	}
	return toString(v)
}

// ItemInt returns item[key] as an int, or def.
func ItemInt(item Item, key string, def int) int {
	v, ok := item[key]
	if !ok || v == nil {
		return def
	}
	return toInt(v, def)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func toInt(v any, def int) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}
