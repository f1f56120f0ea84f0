// Package engine implements the attribute resolution and propagation core:
// the context-specificity model, the versioned value store with proxy
// overrides, prototype/function binding, and the provider/socket/connection
// graph including frame composition.
package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies engine errors for caller handling.
type ErrorClass string

const (
	// ErrorClassValidation covers malformed input: multiple discriminators,
	// disallowed parents, invalid component types. Reported to the caller,
	// never retried.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassIntegrity covers missing values, prototypes or providers for
	// otherwise-valid contexts. These are bugs in the surrounding
	// scaffolding, surfaced verbatim and never defaulted.
	ErrorClassIntegrity ErrorClass = "integrity"

	// ErrorClassConflict covers rows that already exist for a unique
	// (context, key, parent) triple.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassStore covers persistence and notification failures,
	// propagated unchanged; retry policy belongs to the caller's
	// transaction wrapper.
	ErrorClassStore ErrorClass = "store"
)

// Error is the classified error type for all engine operations. It carries
// enough identifying context to pinpoint the failing entity.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains the offending identifier and/or context tuple.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if len(e.Details) > 0 {
		msg = fmt.Sprintf("%s %v", msg, e.Details)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *Error {
	return &Error{Class: ErrorClassValidation, Message: message, Err: err}
}

// NewIntegrityError creates a new integrity error.
func NewIntegrityError(message string, err error) *Error {
	return &Error{Class: ErrorClassIntegrity, Message: message, Err: err}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *Error {
	return &Error{Class: ErrorClassConflict, Message: message, Err: err}
}

// NewStoreError creates a new store error.
func NewStoreError(message string, err error) *Error {
	return &Error{Class: ErrorClassStore, Message: message, Err: err}
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsValidation returns true if the error is classified as validation.
func IsValidation(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassValidation
	}
	return false
}

// IsIntegrity returns true if the error is classified as integrity.
func IsIntegrity(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassIntegrity
	}
	return false
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassConflict
	}
	return false
}

// IsNotFound returns true for integrity errors carrying a not-found code.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case ErrCodeValueNotFoundForContext, ErrCodeNotFound,
			ErrCodeInternalProviderNotFoundForSocket, ErrCodeExternalProviderNotFoundForSocket:
			return true
		}
	}
	return false
}

// Common error codes.
const (
	ErrCodeMultipleDiscriminators            = "MULTIPLE_DISCRIMINATORS"
	ErrCodeParentNotAllowed                  = "PARENT_NOT_ALLOWED"
	ErrCodeKeyRequired                       = "KEY_REQUIRED"
	ErrCodeAlreadyExists                     = "ALREADY_EXISTS"
	ErrCodeNotFound                          = "NOT_FOUND"
	ErrCodeValueNotFoundForContext           = "VALUE_NOT_FOUND_FOR_CONTEXT"
	ErrCodeNodeNotFound                      = "NODE_NOT_FOUND"
	ErrCodeSocketNotFound                    = "SOCKET_NOT_FOUND"
	ErrCodeInternalProviderNotFoundForSocket = "INTERNAL_PROVIDER_NOT_FOUND_FOR_SOCKET"
	ErrCodeExternalProviderNotFoundForSocket = "EXTERNAL_PROVIDER_NOT_FOUND_FOR_SOCKET"
	ErrCodeInvalidComponentTypeForFrame      = "INVALID_COMPONENT_TYPE_FOR_FRAME"
	ErrCodePrototypeContextMismatch          = "PROTOTYPE_CONTEXT_MISMATCH"
	ErrCodeProxySealed                       = "PROXY_SEALED"
	ErrCodeNotAProxy                         = "NOT_A_PROXY"
	ErrCodeFuncNotFound                      = "FUNC_NOT_FOUND"
	ErrCodeUnitDone                          = "UNIT_DONE"
)
