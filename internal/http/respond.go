package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// apiError is the JSON error envelope shared by all API endpoints.
type apiError struct {
	Error string `json:"error"`
}

// apiMessage is the success envelope for operations with no row to echo.
type apiMessage struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondErrorMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, apiError{Error: msg})
}

// validation sentinels surface verbatim as 400s.
var validationErrors = []error{
	core.ErrEmptyLabel,
	core.ErrInvalidDate,
	core.ErrInvalidNameRef,
	core.ErrInvalidCatRef,
	core.ErrNegativeAmount,
	core.ErrEmptyStatus,
	core.ErrInvalidType,
	core.ErrMonthMismatch,
}

func isValidationError(err error) bool {
	for _, sentinel := range validationErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return errors.Is(err, storage.ErrMissingReference)
}

// respondError maps domain and storage errors to the API status taxonomy.
// Unclassified errors become an opaque 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isValidationError(err):
		respondErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrDuplicate):
		respondErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		respondErrorMessage(w, http.StatusNotFound, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentHTTP)
		respondErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes the request body into dst, rejecting unknown fields
// so typos in payload keys surface as 400s instead of silent zero values.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
