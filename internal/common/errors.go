package common

import (
	"errors"
	"net/http"
)

// AppError is an error the API renders with its own code and status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	default:
		return e.Message
	}
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError wraps err with an API code and status.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// ValidationError reports rejected input with 422. The cart is left untouched.
func ValidationError(message string, details any) *AppError {
	return &AppError{Code: "VALIDATION_FAILED", Message: message, HTTPStatus: http.StatusUnprocessableEntity, Details: details}
}

// Forbidden reports an operation the principal's role may not perform.
func Forbidden(message string, err error) *AppError {
	return NewAppError("FORBIDDEN", message, http.StatusForbidden, err)
}

// WriteError renders err as {"error": ErrorBody}.
func WriteError(w http.ResponseWriter, err error) {
	status, body := ErrorPayload(err)
	JSON(w, status, map[string]ErrorBody{"error": body})
}

// ErrorPayload maps err onto a status and body. Errors that are not an
// AppError become 500 INTERNAL.
func ErrorPayload(err error) (int, ErrorBody) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		msg := "unknown error"
		if err != nil {
			msg = err.Error()
		}
		return http.StatusInternalServerError, ErrorBody{Code: "INTERNAL", Message: msg}
	}
	status, code := appErr.HTTPStatus, appErr.Code
	if status == 0 {
		status = http.StatusBadRequest
	}
	if code == "" {
		code = "BAD_REQUEST"
	}
	return status, ErrorBody{Code: code, Message: appErr.Message, Details: appErr.Details}
}
