// Package handlers contains HTTP handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmdto/linkshort/internal/models"
	"github.com/jmdto/linkshort/internal/services"
	"github.com/jmdto/linkshort/internal/shortcode"
)

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps a service error to an HTTP error response.
func writeError(w http.ResponseWriter, err error) {
	status, resp := mapError(err)
	writeJSON(w, status, resp)
}

// mapError translates domain errors into HTTP status codes.
func mapError(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, models.ErrLinkNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"}
	case errors.Is(err, models.ErrUserNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"}
	case errors.Is(err, models.ErrEmptyURL),
		errors.Is(err, models.ErrInvalidURL),
		errors.Is(err, services.ErrInvalidCustomCode):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"}
	case errors.Is(err, shortcode.ErrCodeTaken):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "CODE_TAKEN"}
	case errors.Is(err, models.ErrEmailTaken):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "EMAIL_TAKEN"}
	case errors.Is(err, shortcode.ErrAllocationExhausted):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "service temporarily unavailable", Code: "ALLOCATION_EXHAUSTED"}
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "FORBIDDEN"}
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Code: "INVALID_CREDENTIALS"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "INTERNAL_ERROR"}
	}
}
