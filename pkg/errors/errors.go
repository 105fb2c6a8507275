package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the service's failure taxonomy. Auth and token errors
// surface to the client; retryable scorer failures are absorbed by the
// analysis orchestrator and never reach this package.
var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenMissing       = errors.New("token missing")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRemoteUnavailable  = errors.New("remote scorer unavailable")
	ErrNotFound           = errors.New("resource not found")
	ErrInternal           = errors.New("internal error")
)

// AppError is a structured application error with an HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// UserExists creates a 409 error for a duplicate registration.
func UserExists(username string) *AppError {
	return &AppError{
		Code:    "USER_EXISTS",
		Message: fmt.Sprintf("username %q is already registered", username),
		Status:  http.StatusConflict,
		Err:     ErrUserExists,
	}
}

// InvalidCredentials creates a 401 error. The message is identical for an
// unknown username and a wrong password so the two cases cannot be
// distinguished by the client.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "invalid username or password",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidCredentials,
	}
}

// TokenInvalid creates a 401 error for a malformed or badly signed token.
func TokenInvalid(message string) *AppError {
	return &AppError{
		Code:    "TOKEN_INVALID",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrTokenInvalid,
	}
}

// TokenExpired creates a 401 error for a token past its expiry.
func TokenExpired() *AppError {
	return &AppError{
		Code:    "TOKEN_EXPIRED",
		Message: "token has expired",
		Status:  http.StatusUnauthorized,
		Err:     ErrTokenExpired,
	}
}

// TokenMissing creates a 401 error for a request without a bearer token.
func TokenMissing() *AppError {
	return &AppError{
		Code:    "TOKEN_MISSING",
		Message: "authorization token is required",
		Status:  http.StatusUnauthorized,
		Err:     ErrTokenMissing,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// RemoteUnavailable creates a 503 error. Surfaced only when both the remote
// scorer and the local fallback cannot produce a result.
func RemoteUnavailable(message string) *AppError {
	return &AppError{
		Code:    "REMOTE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     ErrRemoteUnavailable,
	}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// Internal creates a 500 error. The wrapped error is kept for logging but
// never serialized to the client.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenMissing):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
