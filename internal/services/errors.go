// Path: internal/services/errors.go
package services

import "fmt"

// AppError is a custom error type that includes an HTTP status code. Message
// is shown to the caller; Details and Err are only logged.
type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"detail"`
	Details string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("AppError: %s (Code: %d, Details: %s)", e.Message, e.Code, e.Details)
}

func (e *AppError) Unwrap() error { return e.Err }

func internalError(message string, err error) *AppError {
	return &AppError{Code: 500, Message: message, Details: err.Error(), Err: err}
}
