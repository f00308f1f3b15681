package server

import (
	"net/http"

	"github.com/toricodesthings/doc-classification-service/internal/types"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	StatusCode int
	Code       string
	Message    string
}

// MapError maps pipeline errors to HTTP error responses. Only the
// request-level kinds carry their message to the caller.
func MapError(err error) ErrorResponse {
	switch types.KindOf(err) {
	case types.KindValidation:
		return ErrorResponse{http.StatusBadRequest, "INVALID_REQUEST", sanitizeError(err)}
	case types.KindNotADirectory:
		return ErrorResponse{http.StatusBadRequest, "NOT_A_DIRECTORY", sanitizeError(err)}
	case types.KindNotFound:
		return ErrorResponse{http.StatusNotFound, "NOT_FOUND", sanitizeError(err)}
	case types.KindSizeLimitExceeded:
		return ErrorResponse{http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", sanitizeError(err)}
	case types.KindUnsupportedFormat:
		return ErrorResponse{http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", sanitizeError(err)}
	case types.KindEmptyBatch:
		return ErrorResponse{http.StatusUnprocessableEntity, "EMPTY_BATCH", sanitizeError(err)}
	default:
		return ErrorResponse{http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"}
	}
}

// writeFailure sends the classification envelope with the mapped status.
func writeFailure(w http.ResponseWriter, err error) ErrorResponse {
	e := MapError(err)
	w.Header().Set("X-Error-Code", e.Code)
	writeJSON(w, e.StatusCode, types.ErrorResponse(e.Message))
	return e
}
