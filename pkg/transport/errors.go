package transport

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorType classifies an error for clients.
type ErrorType string

const (
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeUnauthorized    ErrorType = "unauthorized"
	ErrorTypeForbidden       ErrorType = "forbidden"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeTooLarge        ErrorType = "request_too_large"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
	ErrorTypeServerError     ErrorType = "server_error"
)

// Error is an error with an HTTP status and a client-facing type.
type Error struct {
	Status  int       `json:"-"`
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return string(e.Type) + ": " + e.Message
}

// ErrorResponse is the JSON envelope of an error body.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// NewError creates an Error.
func NewError(status int, typ ErrorType, message string) *Error {
	return &Error{Status: status, Type: typ, Message: message}
}

// NewInvalidRequestError creates a 400 error.
func NewInvalidRequestError(message string) *Error {
	return NewError(http.StatusBadRequest, ErrorTypeInvalidRequest, message)
}

// NewServerError creates a 500 error.
func NewServerError(message string) *Error {
	return NewError(http.StatusInternalServerError, ErrorTypeServerError, message)
}

// AsError converts err to an *Error. Errors that are not an *Error (or do
// not wrap one) become a generic server error so that internal details
// do not leak to clients.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewServerError("internal server error")
}

// HTTPStatusFromError returns the status to answer err with.
func HTTPStatusFromError(err error) int {
	e := AsError(err)
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// WriteError writes a JSON error body with the given status.
func WriteError(w http.ResponseWriter, status int, typ ErrorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: &Error{Type: typ, Message: message}})
}

// WriteErrorFrom renders err with WriteError.
func WriteErrorFrom(w http.ResponseWriter, err error) {
	e := AsError(err)
	WriteError(w, HTTPStatusFromError(e), e.Type, e.Message)
}
