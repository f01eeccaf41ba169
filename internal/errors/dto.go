package errors

import (
	"github.com/cockroachdb/errors"
)

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Success       bool        `json:"success"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Error         ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code          string         `json:"code"`
	Display       string         `json:"message"`
	InternalError string         `json:"internal_error,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// NewErrorResponse builds the wire representation for an error
func NewErrorResponse(err error, correlationID string) ErrorResponse {
	display := errors.FlattenHints(err)
	if display == "" {
		display = "something went wrong"
	}
	return ErrorResponse{
		Success:       false,
		CorrelationID: correlationID,
		Error: ErrorDetail{
			Code:          ErrCodeFromErr(err),
			Display:       display,
			InternalError: err.Error(),
		},
	}
}
