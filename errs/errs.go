// Package errs implements the small typed-error taxonomy used across the
// gateway core: validation, auth, rate-limit, and provider-side transient
// vs non-transient failures, each carrying the HTTP status it maps to.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a closed taxonomy of error categories.
type Kind int

const (
	Internal Kind = iota
	ValidationKind
	AuthRequiredKind
	AuthInvalidKind
	RateLimitedKind
	TransientKind
	NonTransientKind
)

// Error wraps a cause with a Kind and carries the HTTP status it maps to.
type Error struct {
	Kind   Kind
	Status int
	Msg    string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, status int, msg string) *Error {
	return &Error{Kind: kind, Status: status, Msg: msg}
}

func Validation(msg string) *Error     { return newErr(ValidationKind, 400, msg) }
func AuthRequired(msg string) *Error   { return newErr(AuthRequiredKind, 401, msg) }
func AuthInvalid(msg string) *Error    { return newErr(AuthInvalidKind, 403, msg) }
func RateLimited(msg string) *Error    { return newErr(RateLimitedKind, 429, msg) }
func InternalErr(msg string, cause error) *Error {
	e := newErr(Internal, 500, msg)
	e.Cause = cause
	return e
}

// Transient wraps a provider-side error classified as retry-on-another-provider.
func Transient(msg string) *Error { return newErr(TransientKind, 502, msg) }

// NonTransient wraps a provider-side error that reflects caller input, not
// provider health (auth failure, model not found, invalid arguments).
func NonTransient(msg string) *Error { return newErr(NonTransientKind, 400, msg) }

// StatusCode extracts the HTTP status code for err, defaulting to 500 for
// errors outside this package's taxonomy.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 500
}

// transientMarkers is the fixed set of substrings (case-insensitive) that
// mark a provider failure message as transient, per spec 4.5.
var transientMarkers = []string{
	"rate limit",
	"429",
	"503",
	"502",
	"timeout",
	"econnrefused",
	"fetch failed",
	"overloaded",
}

// IsTransientMessage classifies a raw provider error message as transient
// or non-transient using the spec's fixed substring set. Used by the
// fallback manager, which receives raw provider errors that may not yet be
// wrapped as *errs.Error.
func IsTransientMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err is transient, either because it's a
// *errs.Error of TransientKind or because its message matches the fixed
// substring set.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == TransientKind {
			return true
		}
		if e.Kind == NonTransientKind {
			return false
		}
	}
	return IsTransientMessage(err.Error())
}
