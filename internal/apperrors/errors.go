package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	KindTransient  Kind = "transient"
	KindRateLimit  Kind = "rate_limit"
	KindAuth       Kind = "auth"
	KindValidation Kind = "validation"
	KindBadRequest Kind = "bad_request"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
)

// Error carries a user-facing message next to the internal cause.
type Error struct {
	Kind Kind
	// SafeMessage is what the CLI prints. It never contains response bodies or tokens.
	SafeMessage string
	Cause       error
	// Status is the HTTP status that produced the error, 0 for non-HTTP failures.
	Status int
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.SafeMessage); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindTransient:
		return "Temporary backend error. Please try again."
	case KindRateLimit:
		return "Rate limit exceeded. Please try again later."
	case KindAuth:
		return "Authentication failed. Run 'subdeck env setup' to store a valid token."
	case KindValidation:
		return "Input validation failed."
	case KindBadRequest:
		return "Request rejected by the backend."
	case KindNotFound:
		return "Requested resource was not found."
	case KindConflict:
		return "Resource already exists."
	default:
		return "Request failed."
	}
}

func New(kind Kind, safeMessage string, cause error) error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = defaultSafeMessage(kind)
	}
	return &Error{
		Kind:        kind,
		SafeMessage: msg,
		Cause:       cause,
	}
}

func Transient(err error) error  { return New(KindTransient, "", err) }
func RateLimit(err error) error  { return New(KindRateLimit, "", err) }
func Auth(err error) error       { return New(KindAuth, "", err) }
func Validation(err error) error { return New(KindValidation, "", err) }
func BadRequest(err error) error { return New(KindBadRequest, "", err) }
func NotFound(err error) error   { return New(KindNotFound, "", err) }

// FromStatus classifies a non-2xx HTTP response. service names the remote side
// ("api", "storage") and is only used in the safe message.
func FromStatus(service string, status int, cause error) error {
	wrapped := fmt.Errorf("%s responded %d: %w", service, status, cause)
	var kind Kind
	var msg string
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
		msg = fmt.Sprintf("%s authentication/authorization failed (%d).", service, status)
	case status == http.StatusNotFound:
		kind = KindNotFound
		msg = fmt.Sprintf("%s resource not found (404).", service)
	case status == http.StatusConflict:
		kind = KindConflict
		msg = fmt.Sprintf("%s reported a conflict (409).", service)
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
		msg = fmt.Sprintf("%s rate limit exceeded (429). Please try again later.", service)
	case status == http.StatusRequestTimeout || status >= 500:
		kind = KindTransient
		msg = fmt.Sprintf("%s temporary error (%d). Please retry.", service, status)
	default:
		kind = KindBadRequest
		msg = fmt.Sprintf("%s rejected the request (%d).", service, status)
	}
	e := New(kind, msg, wrapped).(*Error)
	e.Status = status
	return e
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}

// IsRetryable reports whether repeating the same request may succeed.
// Validation errors are local input problems and never retried.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindTransient || e.Kind == KindRateLimit
}

func IsRateLimit(err error) bool {
	return Is(err, KindRateLimit)
}
