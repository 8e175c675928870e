// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/digiscribe/backend/internal/catalog"
	"github.com/digiscribe/backend/internal/metastore"
	"github.com/digiscribe/backend/internal/remote"
	"github.com/digiscribe/backend/internal/upload"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
	Details string `json:"details,omitempty"`
}

// errorEnvelope is the wire shape of every failed response.
type errorEnvelope struct {
	Success bool `json:"success"`
	*APIError
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewAccessDeniedError creates a 403 Forbidden error
func NewAccessDeniedError() *APIError {
	return &APIError{
		Status:  http.StatusForbidden,
		Code:    "ACCESS_DENIED",
		Message: "you do not have access to this resource",
	}
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Status:  http.StatusUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: message,
	}
}

// NewRemoteError creates a 502 Bad Gateway error for remote store failures
func NewRemoteError(cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadGateway,
		Code:    "REMOTE_ERROR",
		Message: "remote storage operation failed",
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// mapDomainError translates service-layer errors into API errors. The
// resource name only flavors the 404 message.
func mapDomainError(err error, resource string) *APIError {
	var (
		validation *catalog.ValidationError
		missing    *upload.MissingChunkError
		outOfOrder *upload.OutOfOrderError
		transport  *remote.TransportError
	)
	switch {
	case errors.Is(err, metastore.ErrNotFound), errors.Is(err, remote.ErrNotFound):
		return NewNotFoundError(resource, "")
	case errors.Is(err, catalog.ErrAccessDenied):
		return NewAccessDeniedError()
	case errors.Is(err, catalog.ErrCircularMove):
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "CIRCULAR_REFERENCE",
			Message: "cannot move a folder into itself or its own subtree",
		}
	case errors.As(err, &validation):
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "VALIDATION_ERROR",
			Message: validation.Reason,
		}
	case errors.As(err, &missing):
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "MISSING_CHUNK",
			Message: missing.Error(),
		}
	case errors.As(err, &outOfOrder):
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "CHUNK_OUT_OF_ORDER",
			Message: outOfOrder.Error(),
		}
	case errors.Is(err, upload.ErrChunkTooLarge):
		return &APIError{
			Status:  http.StatusRequestEntityTooLarge,
			Code:    "CHUNK_TOO_LARGE",
			Message: err.Error(),
		}
	case errors.As(err, &transport):
		return NewRemoteError(err)
	}
	return NewInternalError("operation failed", err)
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		apiErr = &APIError{
			Status:  e.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", e.Message),
		}
	default:
		apiErr = mapDomainError(err, "resource")
	}

	if !c.Response().Committed {
		c.JSON(apiErr.Status, errorEnvelope{APIError: apiErr})
	}
}
