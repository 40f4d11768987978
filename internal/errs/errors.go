// Package errs provides the unified error type used across bucketlens.
//
// Every subsystem (filestore, listing, settings, …) wraps its native errors
// into *errs.Error before returning them to callers. The HTTP layer turns the
// Kind into a status code with HTTPStatus, so handlers never import
// driver-specific packages.
//
// Usage:
//
//	// In a driver — wrap native errors:
//	return errs.Wrap(errs.ErrKindRemoteList, "failed to list objects", sdkErr)
//
//	// At the boundary — pick a status:
//	w.WriteHeader(errs.HTTPStatus(err))
package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown        ErrKind = iota
	ErrKindRemoteList             // bucket missing, unreachable or unauthorized
	ErrKindSigning                // no credentials, malformed key
	ErrKindBucketRequired         // no bucket could be resolved
	ErrKindIO                     // configuration persistence failure
	ErrKindInvalidInput           // bad arguments from the caller
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindRemoteList:
		return "remote_list"
	case ErrKindSigning:
		return "signing"
	case ErrKindBucketRequired:
		return "bucket_required"
	case ErrKindIO:
		return "io"
	case ErrKindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all bucketlens subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original SDK/OS error, carries the remote's message
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

func IsRemoteList(err error) bool {
	return KindOf(err) == ErrKindRemoteList
}

func IsSigning(err error) bool {
	return KindOf(err) == ErrKindSigning
}

func IsBucketRequired(err error) bool {
	return KindOf(err) == ErrKindBucketRequired
}

func IsIO(err error) bool {
	return KindOf(err) == ErrKindIO
}

func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsTimeout reports whether a context deadline or cancellation sits anywhere
// in the chain, regardless of Kind.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// HTTPStatus maps an error to the status code the API answers with.
// Caller input errors are 400; remote, signing, bucket and I/O failures are 500.
func HTTPStatus(err error) int {
	if KindOf(err) == ErrKindInvalidInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
