package errors

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

// Sentinel errors covering the billing error taxonomy. Every error returned
// across a service boundary is marked with exactly one of these.
var (
	ErrValidation         = newSentinel(ErrCodeValidation, "validation error")
	ErrNotFound           = newSentinel(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists      = newSentinel(ErrCodeAlreadyExists, "resource already exists")
	ErrInvalidOperation   = newSentinel(ErrCodeInvalidOperation, "invalid operation")
	ErrSignatureInvalid   = newSentinel(ErrCodeSignatureInvalid, "signature verification failed")
	ErrRateLimit          = newSentinel(ErrCodeRateLimit, "rate limit exceeded")
	ErrGateway            = newSentinel(ErrCodeGateway, "payment gateway error")
	ErrGatewayUnavailable = newSentinel(ErrCodeGatewayUnavailable, "payment gateway temporarily unavailable")
	ErrLedgerDiscrepancy  = newSentinel(ErrCodeLedgerDiscrepancy, "ledger balance discrepancy")
	ErrDatabase           = newSentinel(ErrCodeDatabase, "database error")
	ErrSystem             = newSentinel(ErrCodeSystemError, "system error")

	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrValidation:         http.StatusBadRequest,
		ErrNotFound:           http.StatusNotFound,
		ErrAlreadyExists:      http.StatusConflict,
		ErrInvalidOperation:   http.StatusConflict,
		ErrSignatureInvalid:   http.StatusUnauthorized,
		ErrRateLimit:          http.StatusTooManyRequests,
		ErrGateway:            http.StatusBadGateway,
		ErrGatewayUnavailable: http.StatusServiceUnavailable,
		ErrLedgerDiscrepancy:  http.StatusInternalServerError,
		ErrDatabase:           http.StatusInternalServerError,
		ErrSystem:             http.StatusInternalServerError,
	}
)

const (
	ErrCodeValidation         = "validation_error"
	ErrCodeNotFound           = "not_found"
	ErrCodeAlreadyExists      = "already_exists"
	ErrCodeInvalidOperation   = "invalid_operation"
	ErrCodeSignatureInvalid   = "signature_invalid"
	ErrCodeRateLimit          = "rate_limited"
	ErrCodeGateway            = "gateway_error"
	ErrCodeGatewayUnavailable = "gateway_unavailable"
	ErrCodeLedgerDiscrepancy  = "ledger_discrepancy"
	ErrCodeDatabase           = "database_error"
	ErrCodeSystemError        = "system_error"
)

// InternalError represents a domain error with a machine-readable code
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func newSentinel(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidOperation checks if an error is an invalid operation error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsSignatureInvalid checks if an error is a webhook signature failure
func IsSignatureInvalid(err error) bool {
	return errors.Is(err, ErrSignatureInvalid)
}

// IsGateway checks if an error originates from the payment gateway
func IsGateway(err error) bool {
	return errors.Is(err, ErrGateway) || errors.Is(err, ErrGatewayUnavailable)
}

// IsLedgerDiscrepancy checks if an error is a fatal ledger balance mismatch
func IsLedgerDiscrepancy(err error) bool {
	return errors.Is(err, ErrLedgerDiscrepancy)
}

func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// ErrCodeFromErr returns the machine-readable code for an error
func ErrCodeFromErr(err error) string {
	var internal *InternalError
	if errors.As(err, &internal) {
		return internal.Code
	}
	return ErrCodeSystemError
}
