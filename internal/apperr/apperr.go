// Package apperr defines the error taxonomy shared by the upstream clients
// and the query layer. Callers inspect errors with KindOf/errors.As rather
// than string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy decisions.
type Kind int

const (
	// KindAPI covers network/transport failures and unclassified HTTP statuses.
	KindAPI Kind = iota
	// KindRateLimited is an HTTP 429; the only retryable kind.
	KindRateLimited
	// KindAuth is an HTTP 401/403.
	KindAuth
	// KindNotFound is an HTTP 404.
	KindNotFound
	// KindData means a query had no data to answer from (empty index,
	// no rate covering the requested instant, no data for a day).
	KindData
	// KindConfig means invalid configuration (bad region code, client
	// construction failure).
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "api error"
	case KindRateLimited:
		return "rate limited"
	case KindAuth:
		return "authentication error"
	case KindNotFound:
		return "not found"
	case KindData:
		return "data error"
	case KindConfig:
		return "configuration error"
	default:
		return "unknown error"
	}
}

// Error is a classified application error. Status and Body are set for
// HTTP-derived errors where available.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Body    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports kind equality so sentinel comparisons like
// errors.Is(err, apperr.RateLimited()) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// API builds a KindAPI error.
func API(format string, args ...any) *Error {
	return &Error{Kind: KindAPI, Message: fmt.Sprintf(format, args...)}
}

// APIStatus builds a KindAPI error carrying the HTTP status and body.
func APIStatus(status int, body string) *Error {
	return &Error{
		Kind:    KindAPI,
		Message: fmt.Sprintf("unexpected status %d: %s", status, body),
		Status:  status,
		Body:    body,
	}
}

// RateLimited builds a KindRateLimited error.
func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Status: 429}
}

// Auth builds a KindAuth error.
func Auth(format string, args ...any) *Error {
	return &Error{Kind: KindAuth, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Data builds a KindData error.
func Data(format string, args ...any) *Error {
	return &Error{Kind: KindData, Message: fmt.Sprintf(format, args...)}
}

// Config builds a KindConfig error.
func Config(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, or KindAPI when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindAPI
}

// IsRateLimited reports whether err is classified as a 429.
func IsRateLimited(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindRateLimited
}

// IsData reports whether err is a "no data" error.
func IsData(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindData
}
