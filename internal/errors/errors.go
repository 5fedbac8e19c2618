// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindBadRequest      Kind = "BadRequest"
	KindUnauthorized    Kind = "Unauthorized"
	KindNotFound        Kind = "NotFound"
	KindConflict        Kind = "Conflict"
	KindUpstreamFailure Kind = "UpstreamFailure"
	KindNotConfigured   Kind = "NotConfigured"
)

// Reasons distinguish errors sharing a Kind.
const (
	ReasonTokenUsed       = "token_used"
	ReasonEmailRegistered = "email_registered"
	ReasonMissingFields   = "missing_fields"
)

// Error is the structured error returned by caller-facing operations.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Fields  []string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on kind, and on reason when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// HTTPStatus maps the error onto a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		if e.Reason == ReasonTokenUsed {
			return http.StatusGone
		}
		return http.StatusConflict
	case KindUpstreamFailure:
		return http.StatusBadGateway
	case KindNotConfigured:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Helper constructors

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

func MissingFields(fields ...string) *Error {
	return &Error{
		Kind:    KindBadRequest,
		Reason:  ReasonMissingFields,
		Message: "missing required fields: " + strings.Join(fields, ", "),
		Fields:  fields,
	}
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func TokenUsed() *Error {
	return &Error{Kind: KindConflict, Reason: ReasonTokenUsed, Message: "registration link has already been used"}
}

func EmailRegistered(email string) *Error {
	return &Error{Kind: KindConflict, Reason: ReasonEmailRegistered, Message: fmt.Sprintf("email %s is already registered", email)}
}

func Upstream(message string, cause error) *Error {
	return Wrap(KindUpstreamFailure, message, cause)
}

func NotConfigured(message string) *Error {
	return New(KindNotConfigured, message)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the error's kind, or "" for untyped errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return ""
}
