package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode identifies a registry failure independently of its message.
type ErrorCode string

const (
	CodeCanonicalization   ErrorCode = "canonicalization"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeAlreadyExists      ErrorCode = "already_exists"
	CodeIdentifierConflict ErrorCode = "identifier_conflict"
	CodeInvalidTimestamp   ErrorCode = "invalid_timestamp"
	CodeInvalidVersion     ErrorCode = "invalid_version"
	CodeNotFound           ErrorCode = "not_found"
	CodeNoOp               ErrorCode = "no_op"
	CodeInvalidTransition  ErrorCode = "invalid_transition"
	CodeInvalidIdentity    ErrorCode = "invalid_identity"
)

// RegistryError is a definite, non-retryable rejection.
type RegistryError struct {
	Code    ErrorCode
	Message string
}

func (e RegistryError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any RegistryError carrying the same code.
func (e RegistryError) Is(target error) bool {
	switch t := target.(type) {
	case RegistryError:
		return t.Code == e.Code
	case *RegistryError:
		return t != nil && t.Code == e.Code
	}
	return false
}

var (
	ErrCanonicalization   = RegistryError{Code: CodeCanonicalization}
	ErrUnauthorized       = RegistryError{Code: CodeUnauthorized}
	ErrAlreadyExists      = RegistryError{Code: CodeAlreadyExists}
	ErrIdentifierConflict = RegistryError{Code: CodeIdentifierConflict}
	ErrInvalidTimestamp   = RegistryError{Code: CodeInvalidTimestamp}
	ErrInvalidVersion     = RegistryError{Code: CodeInvalidVersion}
	ErrNotFound           = RegistryError{Code: CodeNotFound}
	ErrNoOp               = RegistryError{Code: CodeNoOp}
	ErrInvalidTransition  = RegistryError{Code: CodeInvalidTransition}
	ErrInvalidIdentity    = RegistryError{Code: CodeInvalidIdentity}
)

func NewError(code ErrorCode, format string, args ...any) error {
	return RegistryError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the registry error code from err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var re RegistryError
	if errors.As(err, &re) {
		return re.Code, true
	}
	var rp *RegistryError
	if errors.As(err, &rp) && rp != nil {
		return rp.Code, true
	}
	return "", false
}

// TransportError means the outcome of an operation is unknown.
// Callers reconcile by re-reading state instead of assuming failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
