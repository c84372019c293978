// Package engine holds the failure kinds shared by the external recognition
// engine clients.
package engine

import "fmt"

// UnavailableError indicates an engine could not be reached or failed at the
// transport level. It is fatal to the current request and is never folded
// into a verdict.
type UnavailableError struct {
	Engine string
	Err    error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s engine unavailable: %v", e.Engine, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *UnavailableError) Unwrap() error {
	return e.Err
}
