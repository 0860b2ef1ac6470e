// Package errors defines the runtime's error taxonomy as sentinel kinds
// rather than ad-hoc error strings, so callers can distinguish expected
// negative outcomes (a missing agent, a claim conflict, a stale version)
// from bugs without parsing messages.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a runtime error for programmatic handling.
type Kind int

const (
	// KindNotFound: referenced agent/task/plan/item does not exist.
	KindNotFound Kind = iota
	// KindAlreadyRegistered: identity conflict with an existing active record.
	KindAlreadyRegistered
	// KindAlreadyClaimed: task already owned by another agent.
	KindAlreadyClaimed
	// KindVersionMismatch: optimistic-lock failure.
	KindVersionMismatch
	// KindIneligible: agent lacks the role or capabilities a task requires.
	KindIneligible
	// KindDependenciesPending: task has unmet dependencies.
	KindDependenciesPending
	// KindExpired: a request or message exceeded its deadline.
	KindExpired
	// KindHandlerError: a user-provided handler returned an error.
	KindHandlerError
	// KindInvalid: precondition violation, e.g. a dependency that does not exist.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyRegistered:
		return "already_registered"
	case KindAlreadyClaimed:
		return "already_claimed"
	case KindVersionMismatch:
		return "version_mismatch"
	case KindIneligible:
		return "ineligible"
	case KindDependenciesPending:
		return "dependencies_pending"
	case KindExpired:
		return "expired"
	case KindHandlerError:
		return "handler_error"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error is a classified runtime error. Surfaced results (claim conflicts,
// missing entities, version mismatches) carry structured detail in Detail;
// callers that only need the classification use Is/As against Kind.
type Error struct {
	Kind    Kind
	Message string
	Detail  any
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified Error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds a classified Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches structured detail (e.g. a claim conflict payload) to
// an Error and returns it for chaining.
func (e *Error) WithDetail(detail any) *Error {
	e.Detail = detail
	return e
}

// Wrap classifies an underlying error under kind.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, returning ok=false for unclassified errors.
func KindOf(err error) (Kind, bool) {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind, true
	}
	return 0, false
}

// DetailOf extracts the structured detail attached to err, if any.
func DetailOf(err error) any {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Detail
	}
	return nil
}
