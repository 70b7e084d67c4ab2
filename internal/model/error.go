package model

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure classes the gateway distinguishes.
// Transport maps each kind to exactly one HTTP status.
type Kind string

const (
	// KindInvalidRequest covers unparsable request bodies, parameters and
	// headers resolved at the boundary (maps to 400).
	KindInvalidRequest Kind = "invalid_request"
	// KindClientSyntax covers malformed range specs, conditional timestamps
	// and identifiers. These map to the transient service-error class (503),
	// not an ordinary client error.
	KindClientSyntax          Kind = "client_syntax"
	KindForbidden             Kind = "forbidden"
	KindUnauthorized          Kind = "unauthorized"
	KindNotFound              Kind = "not_found"
	KindConflict              Kind = "conflict"
	KindNotModified           Kind = "not_modified"
	KindPreconditionFailed    Kind = "precondition_failed"
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindInternal              Kind = "internal"
)

type ErrorWithCode interface {
	Error() string
	Code() string
}

type Error struct {
	ErrKind Kind   `json:"-"`
	ErrCode string `json:"code"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	return e.Message
}

func (e Error) Code() string {
	return e.ErrCode
}

func (e Error) Kind() Kind {
	return e.ErrKind
}

// Fmt creates a new error from the base error template with provided arguments
func (e Error) Fmt(args ...any) Error {
	return Error{
		ErrKind: e.ErrKind,
		ErrCode: e.ErrCode,
		Message: fmt.Sprintf(e.Message, args...),
	}
}

func NewError(kind Kind, code, message string) Error {
	return Error{
		ErrKind: kind,
		ErrCode: code,
		Message: message,
	}
}

// KindOf extracts the failure class from an error. Anything that is not a
// model.Error is an unexpected internal failure.
func KindOf(err error) Kind {
	var e Error
	if errors.As(err, &e) {
		return e.ErrKind
	}
	return KindInternal
}

var (
	ErrValidation       = NewError(KindInvalidRequest, "validation", "Validation error: %s")
	ErrResourceNotFound = NewError(KindNotFound, "resource.not_found", "Resource not found")
)
