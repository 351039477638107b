package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a service outcome for transport mapping
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindNotFound       ErrorKind = "not_found"
	KindConflict       ErrorKind = "conflict"
	KindForbidden      ErrorKind = "forbidden"
	KindUnauthorized   ErrorKind = "unauthorized"
	KindInfrastructure ErrorKind = "infrastructure"
)

// Error codes returned to clients
const (
	CodeMissingFields         = "MISSING_FIELDS"
	CodeEmployeeNotFound      = "EMPLOYEE_NOT_FOUND"
	CodePendingCheckoutExists = "PENDING_CHECKOUT_EXISTS"
	CodeActiveCheckoutExists  = "ACTIVE_CHECKOUT_EXISTS"
	CodeNoSession             = "NO_SESSION"
	CodeNoPendingCheckout     = "NO_PENDING_CHECKOUT"
	CodeNoActiveCheckout      = "NO_ACTIVE_CHECKOUT"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeUnknownSweep          = "UNKNOWN_SWEEP"
	CodeInternalError         = "INTERNAL_ERROR"
)

// CheckoutError is the outcome of a rejected operation. Message is safe to
// show to clients; Err carries internal detail for logs only.
type CheckoutError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *CheckoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// AsCheckoutError extracts a CheckoutError from err. Anything else is treated
// as an infrastructure fault.
func AsCheckoutError(err error) *CheckoutError {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce
	}
	return infrastructureError(err)
}

// IsKind reports whether err is a CheckoutError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var ce *CheckoutError
	return errors.As(err, &ce) && ce.Kind == kind
}

func validationError(code, message string) *CheckoutError {
	return &CheckoutError{Kind: KindValidation, Code: code, Message: message}
}

func notFoundError(code, message string) *CheckoutError {
	return &CheckoutError{Kind: KindNotFound, Code: code, Message: message}
}

func conflictError(code, message string, err error) *CheckoutError {
	return &CheckoutError{Kind: KindConflict, Code: code, Message: message, Err: err}
}

func forbiddenError(code, message string) *CheckoutError {
	return &CheckoutError{Kind: KindForbidden, Code: code, Message: message}
}

func unauthorizedError(code, message string) *CheckoutError {
	return &CheckoutError{Kind: KindUnauthorized, Code: code, Message: message}
}

func infrastructureError(err error) *CheckoutError {
	return &CheckoutError{
		Kind:    KindInfrastructure,
		Code:    CodeInternalError,
		Message: "An internal error occurred. Please try again later.",
		Err:     err,
	}
}
