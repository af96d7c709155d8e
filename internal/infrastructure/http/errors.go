package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
)

// ErrorResponse represents a standardized error response format. Validation
// carries the structured findings when a document was rejected.
type ErrorResponse struct {
	Message    string                       `json:"message"`
	Errors     []string                     `json:"errors"`
	Validation *cartaporte.ValidationResult `json:"validacion,omitempty"`
}

// WriteError writes a standardized JSON error response to the HTTP response writer.
func WriteError(w http.ResponseWriter, statusCode int, message string, errors []string, log *slog.Logger) {
	if errors == nil {
		errors = []string{}
	}
	WriteJSON(w, statusCode, ErrorResponse{Message: message, Errors: errors}, log)
}

// WriteValidationError writes a rejected validation result using the standard
// error body plus the full structured findings.
func WriteValidationError(w http.ResponseWriter, statusCode int, message string, result cartaporte.ValidationResult, log *slog.Logger) {
	WriteJSON(w, statusCode, ErrorResponse{
		Message:    message,
		Errors:     result.Messages(),
		Validation: &result,
	}, log)
}

// WriteJSON encodes v as the JSON response body.
func WriteJSON(w http.ResponseWriter, statusCode int, v any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// The status line is already written.
		if log != nil {
			log.Error("failed to encode response", "error", err)
		}
	}
}
