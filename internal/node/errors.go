package node

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownNode is returned for node types missing from the registry.
	ErrUnknownNode = errors.New("unknown node type")
	// ErrNoOptions is returned when a node has no dynamic options or the method is unknown.
	ErrNoOptions = errors.New("unknown load options method")
	// ErrNotTrigger is returned when activating a node that is not a trigger.
	ErrNotTrigger = errors.New("node is not a trigger")
)

// OperationError is the error returned by node executions. ItemIndex is -1 when the failure is
// not tied to an input item.
type OperationError struct {
	Node         string
	Message      string
	Cause        error
	ItemIndex    int
	InvalidInput bool
}

func (e *OperationError) Error() string {
	if e.ItemIndex >= 0 {
		return fmt.Sprintf("%s [item %d]", e.Message, e.ItemIndex)
	}
	return e.Message
}

func (e *OperationError) Unwrap() error { return e.Cause }

// NewOperationError wraps err for node. An existing OperationError is returned unchanged.
func NewOperationError(node string, err error) *OperationError {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr
	}
	msg := "Unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &OperationError{Node: node, Message: msg, Cause: err, ItemIndex: -1}
}

// ItemError wraps err for the input item at index.
func ItemError(node string, index int, err error) *OperationError {
	e := NewOperationError(node, err)
	return &OperationError{Node: e.Node, Message: e.Message, Cause: e.Cause, ItemIndex: index, InvalidInput: e.InvalidInput}
}

// InvalidInput returns an OperationError for a missing or malformed parameter.
func InvalidInput(node, msg string) *OperationError {
	return &OperationError{Node: node, Message: msg, ItemIndex: -1, InvalidInput: true}
}

// ErrorItem renders a per-item failure when continue-on-fail is set.
func ErrorItem(err error) Item {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return Item{"error": opErr.Message}
	}
	return Item{"error": err.Error()}
}
