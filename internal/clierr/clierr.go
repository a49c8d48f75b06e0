// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

// Package clierr defines the error taxonomy shared by every layer of the
// CLI. Each error carries a camel-case code, a message, an optional cause,
// an optional HTTP status (when server-originated), and the process exit
// status the top-level command handler maps it to.
package clierr

import (
	"errors"
	"fmt"
	"strings"
)

// Exit statuses the top-level handler maps errors to.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitNotFound = 3
)

// Error codes. These strings are part of the CLI's documented contract and
// appear verbatim in "triton: error (<code>): <message>" output.
const (
	CodeGeneric          = "Generic"
	CodeInternal         = "InternalError"
	CodeConfig           = "Config"
	CodeSetup            = "Setup"
	CodeUsage            = "Usage"
	CodeSigning          = "Signing"
	CodeSelfSignedCert   = "SelfSignedCert"
	CodeTimeout          = "Timeout"
	CodeResourceNotFound = "ResourceNotFound"
	CodeInstanceDeleted  = "InstanceDeleted"
	CodeMulti            = "MultiError"

	// Server-originated conditions the transport distinguishes.
	CodeInvalidCredentials = "InvalidCredentials"
	CodeServiceUnavailable = "ServiceUnavailable"
)

// ErrUserAborted is returned when the user declines a confirmation prompt.
// It is a normal control-flow result, not a failure: callers stop work and
// the command exits zero without printing an error banner.
var ErrUserAborted = errors.New("aborted by user")

// Error is the typed error used across the CLI.
type Error struct {
	Code       string
	Message    string
	Cause      error
	StatusCode int // HTTP status when the error originated server-side, else 0.
	ExitStatus int
	// Retryable marks deadline-style failures a caller may safely retry.
	// The core never retries on its own.
	Retryable bool
}

// Error renders the message, appending the cause when it adds information.
func (e *Error) Error() string {
	if e.Cause != nil && !strings.Contains(e.Message, e.Cause.Error()) {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Cause }

// New builds an error with an explicit code and exit status.
func New(code string, exitStatus int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), ExitStatus: exitStatus}
}

// WithCause attaches a cause and returns the same error for chaining.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// Genericf builds a Generic error (exit 1).
func Genericf(format string, args ...any) *Error {
	return New(CodeGeneric, ExitFailure, format, args...)
}

// Internalf builds an InternalError, used for conditions that indicate a bug
// in the CLI rather than bad input or server state.
func Internalf(format string, args ...any) *Error {
	return New(CodeInternal, ExitFailure, format, args...)
}

// Configf builds a Config error for malformed or inconsistent local
// configuration (config.json, profiles, RBAC documents).
func Configf(format string, args ...any) *Error {
	return New(CodeConfig, ExitFailure, format, args...)
}

// Setupf builds a Setup error for environments missing a prerequisite
// (no profile configured, no docker service on the datacenter, ...).
func Setupf(format string, args ...any) *Error {
	return New(CodeSetup, ExitFailure, format, args...)
}

// Usagef builds a Usage error for bad command-line input.
func Usagef(format string, args ...any) *Error {
	return New(CodeUsage, ExitFailure, format, args...)
}

// Signingf builds a Signing error. The cause, when any, should be attached
// with WithCause so agent and crypto failures stay inspectable.
func Signingf(format string, args ...any) *Error {
	return New(CodeSigning, ExitFailure, format, args...)
}

// Timeoutf builds a Timeout error for expired wait deadlines.
func Timeoutf(format string, args ...any) *Error {
	return New(CodeTimeout, ExitFailure, format, args...)
}

// NotFoundf builds a ResourceNotFound error (exit 3).
func NotFoundf(format string, args ...any) *Error {
	return New(CodeResourceNotFound, ExitNotFound, format, args...)
}

// InstanceDeletedf builds an InstanceDeleted error (exit 3).
func InstanceDeletedf(format string, args ...any) *Error {
	return New(CodeInstanceDeleted, ExitNotFound, format, args...)
}

// SelfSignedCert builds the remediation error shown when TLS verification
// fails against a self-signed CloudAPI endpoint.
func SelfSignedCert(url string, cause error) *Error {
	e := New(CodeSelfSignedCert, ExitFailure,
		"could not verify the TLS certificate presented by %s; "+
			"if you trust this endpoint, retry with the insecure option "+
			"(-i or \"insecure\": true in the profile)", url)
	e.Cause = cause
	return e
}

// Multi aggregates failures from fan-out operations. It returns nil for no
// errors and the sole error unchanged for exactly one, so callers can use it
// unconditionally. The first child becomes the cause of the aggregate.
func Multi(errs ...error) error {
	kept := errs[:0:0]
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	parts := make([]string, len(kept))
	for i, err := range kept {
		parts[i] = err.Error()
	}
	return &Error{
		Code:       CodeMulti,
		Message:    fmt.Sprintf("%d errors: %s", len(kept), strings.Join(parts, "; ")),
		Cause:      kept[0],
		ExitStatus: ExitFailure,
	}
}

// ExitStatus maps any error to the process exit status. Untyped errors map
// to the generic failure status; ErrUserAborted maps to success.
func ExitStatus(err error) int {
	if err == nil || errors.Is(err, ErrUserAborted) {
		return ExitOK
	}
	var cerr *Error
	if errors.As(err, &cerr) && cerr.ExitStatus != 0 {
		return cerr.ExitStatus
	}
	return ExitFailure
}

// CodeOf returns the taxonomy code of an error, or CodeGeneric for errors
// that never passed through this package.
func CodeOf(err error) string {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return CodeGeneric
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code string) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Code == code
}
