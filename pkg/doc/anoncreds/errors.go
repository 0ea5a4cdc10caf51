/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"errors"
	"fmt"
)

// ErrorKind is the failure category reported across the engine boundary.
// The numeric values form the external status enum and never change.
type ErrorKind int32

// Boundary status kinds.
const (
	Success ErrorKind = iota
	Input
	IOError
	InvalidState
	Unexpected
	CredentialRevoked
	InvalidUserRevocID
	ProofRejected
	RevocationRegistryFull
)

// Code returns the numeric status value used by the boundary shim.
func (k ErrorKind) Code() int32 {
	return int32(k)
}

// String returns the human-readable category label.
func (k ErrorKind) String() string {
	switch k {
	case Success:
		return "success"
	case Input:
		return "input error"
	case IOError:
		return "IO error"
	case InvalidState:
		return "invalid state"
	case Unexpected:
		return "unexpected error"
	case CredentialRevoked:
		return "credential revoked"
	case InvalidUserRevocID:
		return "invalid user revocation id"
	case ProofRejected:
		return "proof rejected"
	case RevocationRegistryFull:
		return "revocation registry full"
	default:
		return fmt.Sprintf("unknown error kind %d", int32(k))
	}
}

// Error implements the error interface so a bare kind can be matched with
// errors.Is against any engine error chain.
func (k ErrorKind) Error() string {
	return k.String()
}

// Error is the categorical error returned by engine operations. It carries
// one of the boundary status kinds plus an optional wrapped cause.
type Error struct {
	kind  ErrorKind
	msg   string
	cause error
}

// NewError returns an Error of the given kind.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// NewErrorf returns an Error of the given kind with a formatted message.
// The %w verb wraps a cause the usual way.
func NewErrorf(kind ErrorKind, format string, args ...interface{}) *Error {
	formatted := fmt.Errorf(format, args...)

	return &Error{kind: kind, msg: formatted.Error(), cause: errors.Unwrap(formatted)}
}

// Kind returns the boundary status kind.
func (e *Error) Kind() ErrorKind {
	return e.kind
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.kind.String()
	}

	return e.msg
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports kind equality when target is a bare ErrorKind.
func (e *Error) Is(target error) bool {
	kind, ok := target.(ErrorKind)

	return ok && e.kind == kind
}

// KindOf extracts the boundary kind from an error chain. A nil error maps to
// Success; errors minted outside the engine map to Unexpected.
func KindOf(err error) ErrorKind {
	if err == nil {
		return Success
	}

	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}

	var kind ErrorKind
	if errors.As(err, &kind) {
		return kind
	}

	return Unexpected
}
