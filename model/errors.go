package model

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error codes.
const (
	ErrBadRequest       = "BAD_REQUEST"
	ErrValidationError  = "VALIDATION_ERROR"
	ErrForbidden        = "FORBIDDEN"
	ErrNotFound         = "NOT_FOUND"
	ErrConflict         = "CONFLICT"
	ErrUnavailable      = "UNAVAILABLE"
	ErrInternalError    = "INTERNAL_ERROR"
)

// Domain-specific error codes.
const (
	ErrRequirementsUnmet = "REQUIREMENTS_UNMET"
	ErrAlreadyDecided    = "ALREADY_DECIDED"
)

// ErrorEnvelope is the typed error returned by every component. It implements
// the error interface and carries a machine-readable code plus optional
// domain details.
type ErrorEnvelope struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	// Missing holds the names of unsatisfied requirements for
	// REQUIREMENTS_UNMET errors.
	Missing []string `json:"missing,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the envelope code of err, or INTERNAL_ERROR when err is not
// an *ErrorEnvelope.
func CodeOf(err error) string {
	var ee *ErrorEnvelope
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ErrInternalError
}

// IsCode reports whether err is an *ErrorEnvelope with the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR.
func NewValidationError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrValidationError, Message: msg}
}

// NewForbiddenError returns a FORBIDDEN error.
func NewForbiddenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrForbidden, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error. Callers that receive it should
// re-read and retry the operation.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewUnavailableError returns an UNAVAILABLE error for storage or
// collaborator failures. It distinguishes "no data" from "no backing store".
func NewUnavailableError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnavailable, Message: msg}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewRequirementsUnmetError returns a REQUIREMENTS_UNMET error carrying the
// names of the unsatisfied requirements.
func NewRequirementsUnmetError(missing []string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrRequirementsUnmet,
		Message: fmt.Sprintf("requirements not satisfied: %s", strings.Join(missing, ", ")),
		Missing: missing,
	}
}

// NewAlreadyDecidedError returns an ALREADY_DECIDED error for a document
// whose status is terminal.
func NewAlreadyDecidedError(documentID, status string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrAlreadyDecided,
		Message: fmt.Sprintf("document %q is already %s", documentID, status),
	}
}
