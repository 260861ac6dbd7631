package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/fitcoach/fitcoach-server/internal/errors"
	"github.com/fitcoach/fitcoach-server/internal/store"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = newAPIError
}

func newAPIError(status int, message string, errs ...error) huma.StatusError {
	var details []string
	for _, err := range errs {
		if err == nil {
			continue
		}
		if apiErr := fromDomainError(err); apiErr != nil {
			return apiErr
		}
		details = append(details, err.Error())
	}

	apiErr := &APIError{
		status:  status,
		Code:    statusToCode(status),
		Message: message,
	}
	// Request validation failures carry one detail per field.
	if status < http.StatusInternalServerError && len(details) > 0 {
		apiErr.Details = details
	}
	return apiErr
}

// fromDomainError converts domain and store errors; it returns nil for anything else.
func fromDomainError(err error) *APIError {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		msg := domainErr.Message
		if domainErr.Code == domainerrors.CodeStorageUnavailable {
			msg = "storage temporarily unavailable"
		}
		return &APIError{
			status:  domainErr.HTTPStatus(),
			Code:    string(domainErr.Code),
			Message: msg,
			Details: domainErr.Details,
		}
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return &APIError{status: http.StatusNotFound, Code: string(domainerrors.CodeNotFound), Message: storeErr.Message}
		case errors.Is(err, store.ErrInvalidInput):
			return &APIError{status: http.StatusBadRequest, Code: string(domainerrors.CodeValidation), Message: storeErr.Message}
		case store.IsUnavailable(err):
			return &APIError{status: http.StatusServiceUnavailable, Code: string(domainerrors.CodeStorageUnavailable), Message: "storage temporarily unavailable"}
		}
	}
	return nil
}

// statusToCode maps HTTP status codes to our domain error codes.
func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(domainerrors.CodeValidation)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domainerrors.CodeConflict)
	case http.StatusTooManyRequests:
		return string(domainerrors.CodeRateLimited)
	case http.StatusServiceUnavailable:
		return string(domainerrors.CodeStorageUnavailable)
	default:
		return string(domainerrors.CodeInternal)
	}
}

// isUnavailable reports whether err means the storage engine could not be reached.
func isUnavailable(err error) bool {
	return store.IsUnavailable(err) || errors.Is(err, domainerrors.ErrStorageUnavailable)
}
