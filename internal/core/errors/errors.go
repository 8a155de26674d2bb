package errors

import (
	"errors"
	"net/http"

	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/aevon-lab/tradepulse/internal/core/storage"
)

const (
	HttpInternalError         = "internal_error"
	HttpInvalidSpecification  = "invalid_specification"
	HttpInsufficientHistory   = "insufficient_history"
	HttpDataSourceUnavailable = "data_source_unavailable"
	HttpRateLimited           = "rate_limited"
	HttpUnhealthy             = "unhealthy"
)

// ErrorResponse is the error response body for every API error.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// FromError maps an engine error onto an HTTP status and response body.
// message is the human readable summary for the failed operation.
func FromError(err error, message string) (int, ErrorResponse) {
	var history *aggregation.InsufficientHistoryError
	switch {
	case errors.As(err, &history):
		return http.StatusUnprocessableEntity, ErrorResponse{
			ErrorType: HttpInsufficientHistory,
			Message:   message,
			Details: map[string]int{
				"required": history.Required,
				"actual":   history.Actual,
			},
		}
	case errors.Is(err, aggregation.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity, ErrorResponse{ErrorType: HttpInsufficientHistory, Message: message, Details: err.Error()}
	case errors.Is(err, aggregation.ErrInvalidSpecification):
		return http.StatusBadRequest, ErrorResponse{ErrorType: HttpInvalidSpecification, Message: message, Details: err.Error()}
	case errors.Is(err, storage.ErrDataSourceUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{ErrorType: HttpDataSourceUnavailable, Message: message, Details: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{ErrorType: HttpInternalError, Message: message, Details: err.Error()}
	}
}
