package core

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned by stores when a delete targets an unknown
// session id.
var ErrSessionNotFound = errors.New("session not found")

// ExecutionError reports an unrecoverable fault inside the graph executor:
// state corruption, a missing required collaborator or a broken topology.
// Everything else in the pipeline degrades instead of failing the turn, so
// callers receiving an ExecutionError should produce a generic failure
// response.
type ExecutionError struct {
	Node string // Node executing when the fault occurred, empty for setup faults
	Err  error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("execution error in node %s: %v", e.Node, e.Err)
	}
	return fmt.Sprintf("execution error: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error { return e.Err }

// NewExecutionError wraps err as a fatal executor fault attributed to node.
func NewExecutionError(node string, err error) *ExecutionError {
	return &ExecutionError{Node: node, Err: err}
}

// PersistenceError flags a failed session save. It is surfaced to operators
// for out-of-band retry but never blocks returning the answer to the caller.
type PersistenceError struct {
	SessionID string
	Err       error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist session %s: %v", e.SessionID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PersistenceError) Unwrap() error { return e.Err }
