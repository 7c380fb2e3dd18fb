package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"catalog-api/internal/domain"

	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// respondWithError sends a structured error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithErrorDetails(w, statusCode, http.StatusText(statusCode), message, nil)
}

// respondWithErrorDetails sends a structured error response with a machine
// code and additional details
func respondWithErrorDetails(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	json.NewEncoder(w).Encode(response)
}

// RespondWithError sends a structured error response with the default code
// for the status
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithError(w, statusCode, message)
}

// RespondWithDomainError translates the service error taxonomy to HTTP:
// not-found to 404, conflicts to 409, business-rule violations to 422,
// anything else to 500. The machine code from the error rides along in the
// body so clients can branch without parsing messages.
func RespondWithDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		respondWithErrorDetails(w, http.StatusNotFound, "NotFound", notFound.Error(), nil)
		return
	}

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		respondWithErrorDetailsFromCode(w, http.StatusConflict, conflict.Code, conflict.Message, conflict.Details)
		return
	}

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		respondWithErrorDetailsFromCode(w, http.StatusUnprocessableEntity, validation.Code, validation.Message, validation.Details)
		return
	}

	logger.Error("Unhandled service error", zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, "internal server error")
}

func respondWithErrorDetailsFromCode(w http.ResponseWriter, statusCode int, code domain.ErrorCode, message string, details map[string]interface{}) {
	respondWithErrorDetails(w, statusCode, string(code), message, details)
}

// RespondWithValidationErrors sends a schema-layer validation failure. These
// are structural failures and respond 400, distinct from the service-level
// 422 business codes.
func RespondWithValidationErrors(w http.ResponseWriter, errs []ValidationError) {
	details := make(map[string]interface{})
	details["validation_errors"] = errs

	respondWithErrorDetails(w, http.StatusBadRequest, "ValidationFailed", "validation failed", details)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					respondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
