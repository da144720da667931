package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/querybench/querybench-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// statusForError maps service errors to HTTP status and a stable error code.
// Connectivity failures answer 502: the request was fine, the external
// database was not.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperrors.ErrDecryptionFailed):
		return http.StatusInternalServerError, "decryption_failed"
	case errors.Is(err, apperrors.ErrInvalidIdentifier):
		return http.StatusBadRequest, "invalid_identifier"
	case apperrors.IsConnectivity(err):
		return http.StatusBadGateway, "connection_failed"
	case apperrors.IsQuery(err):
		return http.StatusBadRequest, "query_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
