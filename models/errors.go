package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeMissingCredential = "MISSING_CREDENTIAL"
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeEngineFailure     = "ENGINE_FAILURE"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// GatewayError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type GatewayError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError creates a new GatewayError.
func NewGatewayError(code, message string, err error) *GatewayError {
	return &GatewayError{Code: code, Message: message, Err: err}
}

// EngineFailure wraps an error returned by an engine call. The message is
// the engine's own error text so clients see it verbatim.
func EngineFailure(err error) *GatewayError {
	return &GatewayError{Code: ErrCodeEngineFailure, Message: err.Error(), Err: err}
}
