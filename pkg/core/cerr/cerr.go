// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package cerr defines the typed errors which the migration use cases
// return to their hosts. Every error carries a Kind, the name of the
// deployment unit which failed, and possibly a wrapped cause.
// Kinds are compared with errors.Is against the exported sentinels,
// for example errors.Is(err, cerr.ErrConnectionUnavailable).
package cerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure of a migration unit.
type Kind int

// Failure kinds.
const (
	KindUnknown Kind = iota
	// InvalidConfiguration means a required collaborator was missing.
	InvalidConfiguration
	// ConnectionUnavailable means no connection could be obtained.
	ConnectionUnavailable
	// ConnectionInvalid means the liveness check of a connection failed.
	ConnectionInvalid
	// NoTargetConfigured means no tier provided a connection target.
	NoTargetConfigured
	// MigrationAlreadyInProgress means the single run guard tripped.
	MigrationAlreadyInProgress
	// MigrationExecutionFailed means the engine reported a failure.
	MigrationExecutionFailed
	// Interrupted means the caller cancelled while a retry was waiting.
	Interrupted
	// NotRunning means an operation needed a running unit.
	NotRunning
)

var kindNames = map[Kind]string{
	KindUnknown:                "unknown failure",
	InvalidConfiguration:       "invalid configuration",
	ConnectionUnavailable:      "connection unavailable",
	ConnectionInvalid:          "connection invalid",
	NoTargetConfigured:         "no target configured",
	MigrationAlreadyInProgress: "migration already in progress",
	MigrationExecutionFailed:   "migration execution failed",
	Interrupted:                "interrupted",
	NotRunning:                 "unit not running",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return kindNames[KindUnknown]
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidConfiguration       = &Error{Kind: InvalidConfiguration}
	ErrConnectionUnavailable      = &Error{Kind: ConnectionUnavailable}
	ErrConnectionInvalid          = &Error{Kind: ConnectionInvalid}
	ErrNoTargetConfigured         = &Error{Kind: NoTargetConfigured}
	ErrMigrationAlreadyInProgress = &Error{Kind: MigrationAlreadyInProgress}
	ErrMigrationExecutionFailed   = &Error{Kind: MigrationExecutionFailed}
	ErrInterrupted                = &Error{Kind: Interrupted}
	ErrNotRunning                 = &Error{Kind: NotRunning}
)

// Error is a failure of the named deployment unit. Msg must not hold
// unmasked connection targets or credentials.
type Error struct {
	Kind Kind
	Unit string
	Msg  string
	Err  error
}

// New creates an Error of kind k for unit with an optional cause.
func New(k Kind, unit, msg string, cause error) *Error {
	return &Error{Kind: k, Unit: unit, Msg: msg, Err: cause}
}

// Newf is like New but formats the message.
func Newf(k Kind, unit string, cause error, format string, a ...any) *Error {
	return New(k, unit, fmt.Sprintf(format, a...), cause)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind. This lets
// the sentinels match errors of any unit.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Unit != "" {
		s = fmt.Sprintf("unit %q: %s", e.Unit, s)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// HTTPStatusCode maps the kind of e to the status code which the REST
// adapter reports.
func (e *Error) HTTPStatusCode() int {
	switch e.Kind {
	case InvalidConfiguration, NoTargetConfigured:
		return http.StatusBadRequest
	case MigrationAlreadyInProgress, NotRunning:
		return http.StatusConflict
	case ConnectionUnavailable, ConnectionInvalid:
		return http.StatusServiceUnavailable
	case Interrupted:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the Kind of the first *Error in the chain of err, or
// KindUnknown if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
