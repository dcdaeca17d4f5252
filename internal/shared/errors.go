// Package shared holds cross-cutting concerns: the error taxonomy, the
// caller identity carried through request contexts and the audit logger.
package shared

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error so callers can branch without matching
// on reason strings.
type Kind int

const (
	// KindUnknown is the zero kind for errors outside the taxonomy.
	KindUnknown Kind = iota
	// KindAuthentication indicates no caller identity was attached.
	KindAuthentication
	// KindAuthorization indicates the caller lacks privilege for the target.
	KindAuthorization
	// KindValidation indicates malformed or contradictory input.
	KindValidation
	// KindConflict indicates a uniqueness violation on create.
	KindConflict
	// KindNotFound indicates the target record is absent.
	KindNotFound
	// KindDependency indicates a collaborator call failed or timed out.
	KindDependency
	// KindState indicates an action illegal for the record's current state.
	KindState
)

// Error carries a stable kind and a human-readable reason. Internal causes
// are wrapped but never exposed to callers.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the kind from an error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Errorf builds an Error of the given kind with a formatted reason.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and reason to an underlying cause.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// ErrAuthentication reports a request without caller identity.
func ErrAuthentication(reason string) *Error {
	return &Error{Kind: KindAuthentication, Reason: reason}
}

// ErrAuthorization reports insufficient privilege.
func ErrAuthorization(reason string) *Error {
	return &Error{Kind: KindAuthorization, Reason: reason}
}

// ErrValidation reports malformed input.
func ErrValidation(reason string) *Error {
	return &Error{Kind: KindValidation, Reason: reason}
}

// ErrConflict reports a uniqueness violation.
func ErrConflict(reason string) *Error {
	return &Error{Kind: KindConflict, Reason: reason}
}

// ErrNotFound reports an absent record.
func ErrNotFound(reason string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason}
}

// ErrDependency reports a failed collaborator call.
func ErrDependency(reason string, err error) *Error {
	return &Error{Kind: KindDependency, Reason: reason, Err: err}
}

// ErrState reports an action illegal for the current state.
func ErrState(reason string) *Error {
	return &Error{Kind: KindState, Reason: reason}
}
