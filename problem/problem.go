package problem

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. The kind becomes the trailing segment of the Type URI.
const (
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindConflict   = "conflict"
	KindRateLimit  = "rate_limit"
	KindInternal   = "internal"
)

// Error is the structured error shape returned to tool callers.
//
// Contract:
// - Shape: fixed across all error kinds; callers may rely on every field.
// - Errors: implements the error interface; safe to wrap with %w.
// - Recoverability: no Error is process-fatal; NextSteps tells the caller
//   how to recover (retry, correct input, or wait out the window).
type Error struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	NextSteps string `json:"next_steps"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Title, e.Status, e.Detail)
}

// Kind returns the error kind derived from the Type URI.
func (e *Error) Kind() string {
	for i := len(e.Type) - 1; i >= 0; i-- {
		if e.Type[i] == '/' {
			return e.Type[i+1:]
		}
	}
	return e.Type
}

// instance identifies the failing call as "<tool>@<timestamp>".
func instance(tool string) string {
	return fmt.Sprintf("%s@%s", tool, time.Now().UTC().Format(time.RFC3339))
}

func newError(kind, title string, status int, tool, detail, nextSteps string) *Error {
	return &Error{
		Type:      "/errors/" + kind,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance(tool),
		NextSteps: nextSteps,
	}
}

// Validation reports malformed input (400).
func Validation(tool, detail, nextSteps string) *Error {
	return newError(KindValidation, "Invalid request", 400, tool, detail, nextSteps)
}

// NotFound reports an absent resource (404).
func NotFound(tool, detail, nextSteps string) *Error {
	return newError(KindNotFound, "Resource not found", 404, tool, detail, nextSteps)
}

// Conflict reports an idempotency, ETag, or resource-state conflict (409).
func Conflict(tool, detail, nextSteps string) *Error {
	return newError(KindConflict, "Conflict", 409, tool, detail, nextSteps)
}

// RateLimited reports an exhausted per-minute quota (429). resetSeconds is
// the time until the current window ends.
func RateLimited(tool string, limit, resetSeconds int) *Error {
	return newError(KindRateLimit, "Rate limit exceeded", 429, tool,
		fmt.Sprintf("per-minute limit of %d requests exceeded", limit),
		fmt.Sprintf("Wait %d seconds for the rate limit window to reset, then retry.", resetSeconds))
}

// Internal reports an unexpected failure during business-logic execution
// (500). The original message is preserved in Detail for diagnosability.
func Internal(tool, detail string) *Error {
	return newError(KindInternal, "Internal error", 500, tool, detail,
		"Retry the request; if the error persists, report the instance identifier.")
}

// As extracts an *Error from err, or nil if err does not carry one.
func As(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}
