package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStreamingUnsupported is returned by fetch-only vendors for any
// subscription operation.
var ErrStreamingUnsupported = errors.New("vendor does not support streaming")

// DataProviderError is a vendor-specific network/API failure.
type DataProviderError struct {
	Vendor string
	Code   string
	Status int // originating HTTP status, 0 when not applicable
	Err    error
}

func (e *DataProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (http %d): %v", e.Vendor, e.Code, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Vendor, e.Code, e.Err)
}

func (e *DataProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the failure class is worth retrying.
func (e *DataProviderError) Retryable() bool {
	if e.Status == 429 || e.Status >= 500 {
		return true
	}
	return e.Code == ErrCodeTimeout || e.Code == ErrCodeNetwork
}

// Provider error codes.
const (
	ErrCodeNetwork     = "ERR_NETWORK"
	ErrCodeTimeout     = "ERR_TIMEOUT"
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	ErrCodeHTTPStatus  = "ERR_HTTP_STATUS"
	ErrCodeMalformed   = "ERR_MALFORMED"
	ErrCodeNotFound    = "ERR_NOT_FOUND"
)

// EntityValidationError reports that an entity failed structural or
// semantic checks during normalization.
type EntityValidationError struct {
	Field      string
	Value      interface{}
	Violations []string
}

func (e *EntityValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s=%v: %s", e.Field, e.Value, strings.Join(e.Violations, "; "))
}

// AllProvidersFailedError aggregates both vendors' failures. Raised by the
// hybrid router only when the primary and the secondary both fail hard.
type AllProvidersFailedError struct {
	Operation    string
	PrimaryErr   error
	SecondaryErr error
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all providers failed for %s: primary: %v; secondary: %v",
		e.Operation, e.PrimaryErr, e.SecondaryErr)
}

func (e *AllProvidersFailedError) Unwrap() error { return e.PrimaryErr }
