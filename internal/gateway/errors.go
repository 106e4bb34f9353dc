package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	genericFailure = "request failed"
	networkFailure = "unable to reach the ledger service"
)

// RequestError is a non-success response to an authenticated call.
type RequestError struct {
	Endpoint   string
	StatusCode int
	reason     string
}

// NewRequestError builds the error returned for a non-success status.
func NewRequestError(endpoint string, statusCode int, reason string) *RequestError {
	return &RequestError{Endpoint: endpoint, StatusCode: statusCode, reason: reason}
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("ledger %s returned %d: %s", e.Endpoint, e.StatusCode, e.reason)
}

func (e *RequestError) Reason() string { return e.reason }

// Unauthorized reports whether the ledger rejected the session itself.
func (e *RequestError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// AuthError is a rejected login or registration.
type AuthError struct {
	StatusCode int
	reason     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected (%d): %s", e.StatusCode, e.reason)
}

func (e *AuthError) Reason() string { return e.reason }

// NetworkError means the call never produced a usable response.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Reason() string { return networkFailure }

// extractReason pulls a human-readable reason out of an error body. It knows
// the ledger's {"detail": "..."} form, validation lists under detail, and the
// {"error": ..., "details": ...} and {"message": ...} shapes.
func extractReason(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return genericFailure
	}
	doc := gjson.ParseBytes(body)

	detail := doc.Get("detail")
	switch {
	case detail.Type == gjson.String && strings.TrimSpace(detail.String()) != "":
		return detail.String()
	case detail.IsArray():
		var msgs []string
		detail.ForEach(func(_, item gjson.Result) bool {
			msg := item.Get("msg").String()
			if loc := item.Get("loc"); loc.IsArray() {
				parts := loc.Array()
				if len(parts) > 0 {
					msg = parts[len(parts)-1].String() + ": " + msg
				}
			}
			if strings.TrimSpace(msg) != "" {
				msgs = append(msgs, msg)
			}
			return true
		})
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	if errText := doc.Get("error").String(); errText != "" {
		if details := doc.Get("details").String(); details != "" {
			return errText + ": " + details
		}
		return errText
	}
	if msg := doc.Get("message").String(); msg != "" {
		return msg
	}
	return genericFailure
}
