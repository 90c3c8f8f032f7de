package model

import (
	"errors"
	"fmt"
)

// ProviderError is a backend-reported failure normalised across vendors.
type ProviderError struct {
	Message    string
	Code       string
	StatusCode int
	Retryable  bool
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Code != "":
		return fmt.Sprintf("%s (status %d, %s)", e.Message, e.StatusCode, e.Code)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	default:
		return e.Message
	}
}

// NewProviderError classifies a vendor failure by HTTP status.
//
// Rate limits, timeouts and server errors are retryable. Authentication,
// permission, not-found and malformed-request errors are not: repeating the
// same call to the same backend cannot succeed.
func NewProviderError(statusCode int, message, code string) *ProviderError {
	pe := &ProviderError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
	}

	switch statusCode {
	case 400, 401, 403, 404, 413, 422:
		pe.Retryable = false
	case 408, 429, 500, 502, 503, 504:
		pe.Retryable = true
	default:
		// Unknown statuses default to retryable.
		pe.Retryable = true
	}

	return pe
}

// IsRetryable reports whether err may succeed on another attempt against
// the same backend. Errors without a classification are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}

// FailedResponse wraps a ProviderError into an unsuccessful Response.
func FailedResponse(provider, modelName string, pe *ProviderError) *Response {
	return &Response{
		Success:  false,
		Provider: provider,
		Model:    modelName,
		Error:    pe,
	}
}
