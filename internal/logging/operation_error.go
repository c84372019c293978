package logging

import (
	"fmt"
	"strings"
)

// OperationError annotates an error with the failing operation, the
// verification request it belongs to, and, for engine-facing operations, the
// external recognition engine involved.
type OperationError struct {
	Operation string
	RequestID string
	Engine    string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}

	var tags []string
	if e.RequestID != "" {
		tags = append(tags, "request_id="+e.RequestID)
	}
	if e.Engine != "" {
		tags = append(tags, "engine="+e.Engine)
	}
	if len(tags) > 0 {
		return fmt.Sprintf("%s (%s): %v", e.Operation, strings.Join(tags, ", "), e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps an error with structured context about where it occurred.
func NewOperationError(operation, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Err: err}
}

// NewEngineOperationError wraps a failure from one of the external
// recognition engines, naming the engine alongside the operation.
func NewEngineOperationError(operation, engine, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Engine: engine, Err: err}
}
