// internal/app/features/errors/errors.go

// Package errors centralizes JSON error responses for the API.
//
// Every error body has the shape
//
//	{ "error": "...", "field": "...", "retryable": false }
//
// field is present only for validation failures; retryable marks
// transient store failures a client may retry.
package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type errorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable"`
}

// WriteJSON writes any payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError writes a terminal (non-retryable) error.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorBody{Error: msg})
}

// WriteFieldError writes a 400 validation error naming the bad field.
func WriteFieldError(w http.ResponseWriter, field, reason string) {
	WriteJSON(w, http.StatusBadRequest, errorBody{Error: reason, Field: field})
}

// WriteRetryable writes a 503 the client may retry.
func WriteRetryable(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusServiceUnavailable, errorBody{Error: msg, Retryable: true})
}

// ErrorLogger pairs error responses with structured log entries so
// handlers don't repeat the log-then-respond dance.
type ErrorLogger struct {
	Log *zap.Logger
}

func NewErrorLogger(log *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: log}
}

// ServerError logs the underlying error and answers 500 with a generic
// message; internals never leak to the client.
func (e *ErrorLogger) ServerError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	e.Log.Error(msg,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	WriteError(w, http.StatusInternalServerError, "internal error")
}

// StoreUnavailable logs a transient store failure and answers 503
// retryable.
func (e *ErrorLogger) StoreUnavailable(w http.ResponseWriter, r *http.Request, msg string, err error) {
	e.Log.Error(msg,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	WriteRetryable(w, "service temporarily unavailable")
}
