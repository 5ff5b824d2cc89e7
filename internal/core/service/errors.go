package service

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies service errors into the failure taxonomy surfaced to
// API clients and webhook payloads.
type ErrorKind string

const (
	ErrValidation      ErrorKind = "validation"
	ErrNotFound        ErrorKind = "not_found"
	ErrTenantIsolation ErrorKind = "tenant_isolation"
	ErrUpstream        ErrorKind = "upstream_protocol"
	ErrExportTimeout   ErrorKind = "export_timeout"
	ErrIngestTimeout   ErrorKind = "ingest_timeout"
	ErrIngestFailed    ErrorKind = "ingest_failed"
	ErrConfiguration   ErrorKind = "configuration"
	ErrStorage         ErrorKind = "storage_mutation"
)

// ServiceError preserves the failure kind and message across the service
// boundary. Handlers map Code onto the HTTP response status.
type ServiceError struct {
	Kind    ErrorKind
	Code    int
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code int, format string, args ...interface{}) *ServiceError {
	return &ServiceError{
		Kind:    kind,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func NewValidationError(format string, args ...interface{}) *ServiceError {
	return newError(ErrValidation, http.StatusBadRequest, format, args...)
}

func NewNotFoundError(format string, args ...interface{}) *ServiceError {
	return newError(ErrNotFound, http.StatusNotFound, format, args...)
}

func NewTenantIsolationError(format string, args ...interface{}) *ServiceError {
	return newError(ErrTenantIsolation, http.StatusBadRequest, format, args...)
}

// NewUpstreamError surfaces the remote platform's message verbatim.
func NewUpstreamError(format string, args ...interface{}) *ServiceError {
	return newError(ErrUpstream, http.StatusBadGateway, format, args...)
}

func NewExportTimeoutError(format string, args ...interface{}) *ServiceError {
	return newError(ErrExportTimeout, http.StatusGatewayTimeout, format, args...)
}

func NewIngestTimeoutError(format string, args ...interface{}) *ServiceError {
	return newError(ErrIngestTimeout, http.StatusGatewayTimeout, format, args...)
}

func NewIngestFailedError(format string, args ...interface{}) *ServiceError {
	return newError(ErrIngestFailed, http.StatusBadGateway, format, args...)
}

func NewConfigurationError(format string, args ...interface{}) *ServiceError {
	return newError(ErrConfiguration, http.StatusServiceUnavailable, format, args...)
}

func NewStorageError(format string, args ...interface{}) *ServiceError {
	return newError(ErrStorage, http.StatusBadGateway, format, args...)
}
