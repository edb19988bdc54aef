// Package handlers provides the REST API handlers of the desktop server.
package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/kimhsiao/leadbook/internal/errors"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an application error code to an HTTP status.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.ErrInvalidInput, apperrors.ErrValidation, apperrors.ErrInvalidField,
		apperrors.ErrInvalidValue, apperrors.ErrUnsupportedFormat, apperrors.ErrCorruptedArchive:
		status = http.StatusBadRequest
	case apperrors.ErrInvalidPassword:
		status = http.StatusUnauthorized
	case apperrors.ErrNotFound, apperrors.ErrLeadNotFound, apperrors.ErrIndexOutOfRange:
		status = http.StatusNotFound
	case apperrors.ErrConfigInvalid:
		status = http.StatusConflict
	}
	writeJSON(w, status, ErrorResponse{Code: string(code), Message: err.Error()})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: string(apperrors.ErrInvalidInput), Message: message})
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
