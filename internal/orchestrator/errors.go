package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy rejects a mutating call while another one is outstanding.
	ErrBusy = errors.New("another operation is still in progress")
	// ErrNotAuthenticated rejects calls that need a session when there is none.
	ErrNotAuthenticated = errors.New("sign in first")
)

// ValidationError is a form value rejected before submission.
type ValidationError struct {
	Field   string
	Problem string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Problem)
}

func (e *ValidationError) Reason() string {
	return e.Field + " " + e.Problem
}
