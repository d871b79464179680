package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// AppError represents an application error with HTTP context
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

// ErrorResponse is the JSON response format for errors
type ErrorResponse struct {
	Error *AppError `json:"error"`
}

// WriteJSON writes the error as JSON response
func (e *AppError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: e})
}

// ============================================================
// ERROR CONSTRUCTORS
// ============================================================

// Validation Errors (400)
func InvalidLinkName(details string) *AppError {
	return &AppError{
		Code:       "INVALID_LINK_NAME",
		Message:    "The link name is invalid",
		Details:    details,
		StatusCode: http.StatusBadRequest,
	}
}

func InvalidParameter(name, details string) *AppError {
	return &AppError{
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("Parameter '%s' is invalid", name),
		Details:    details,
		StatusCode: http.StatusBadRequest,
	}
}

// Auth Errors (401)
func Unauthorized() *AppError {
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Missing or invalid admin token",
		StatusCode: http.StatusUnauthorized,
	}
}

// Not Found Errors (404)
func NotFound(path string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("Nothing is served at '%s'", path),
		StatusCode: http.StatusNotFound,
	}
}

func LinkNotFound(name string) *AppError {
	return &AppError{
		Code:       "LINK_NOT_FOUND",
		Message:    fmt.Sprintf("Link '%s' not found or inactive", name),
		StatusCode: http.StatusNotFound,
	}
}

func NoNumbersAvailable(name string) *AppError {
	return &AppError{
		Code:       "NO_NUMBERS_AVAILABLE",
		Message:    fmt.Sprintf("No active WhatsApp number is available for '%s'", name),
		StatusCode: http.StatusNotFound,
	}
}

// Rate Limit Error (429)
func RateLimitExceeded() *AppError {
	return &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please try again later",
		StatusCode: http.StatusTooManyRequests,
	}
}

// Server Errors (500)
func Internal(details string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An internal server error occurred",
		Details:    details,
		StatusCode: http.StatusInternalServerError,
	}
}

func DatabaseError() *AppError {
	return &AppError{
		Code:       "DATABASE_ERROR",
		Message:    "A database error occurred",
		StatusCode: http.StatusInternalServerError,
	}
}

// Unavailable (503)
func ServiceUnavailable(details string) *AppError {
	return &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "Service is not ready",
		Details:    details,
		StatusCode: http.StatusServiceUnavailable,
	}
}
