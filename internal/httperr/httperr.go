// Package httperr defines the error taxonomy the API maps every failure
// into. Each handler-level failure resolves deterministically to exactly one
// kind and a stable HTTP status; the global handler converts anything
// unclassified into a generic 500 and never leaks internal detail outside
// debug mode.
package httperr

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind classifies a failure.
type Kind int

const (
	KindValidation Kind = iota + 1 // malformed or missing input
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindDependency // downstream gateway or storage call failed
)

// Error pairs a kind with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, never sent to clients
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error      { return &Error{Kind: KindValidation, Message: msg} }
func Unauthenticated(msg string) *Error { return &Error{Kind: KindUnauthenticated, Message: msg} }
func Forbidden(msg string) *Error       { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error        { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error        { return &Error{Kind: KindConflict, Message: msg} }

// Dependency wraps a downstream failure. The cause is logged, not returned.
func Dependency(msg string, err error) *Error {
	return &Error{Kind: KindDependency, Message: msg, Err: err}
}

// Internal wraps an unclassified failure so handlers can attach context
// without choosing a kind; the global handler reports it as a 500.
func Internal(err error) *Error {
	return &Error{Kind: KindDependency, Message: "internal server error", Err: err}
}

func (k Kind) status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Handler returns the global echo error handler. In debug mode internal
// detail is included in 500 responses; in production it is suppressed.
func Handler(debug bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"

		var he *Error
		var ehe *echo.HTTPError
		switch {
		case errors.As(err, &he):
			status = he.Kind.status()
			message = he.Message
			if status == http.StatusInternalServerError {
				log.Printf("internal error on %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
				if !debug {
					message = "internal server error"
				}
			}
		case errors.As(err, &ehe):
			status = ehe.Code
			if m, ok := ehe.Message.(string); ok {
				message = m
			}
		default:
			log.Printf("unhandled error on %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
			if debug {
				message = err.Error()
			}
		}

		_ = c.JSON(status, echo.Map{"error": message})
	}
}
