package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies business errors; each kind maps to one HTTP status.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindAlreadyExists
	KindBusinessRule
	KindPermissionDenied
	KindConcurrencyConflict
	KindUnauthorized
	KindFile
	KindInternal
)

// Response codes carried in the envelope "code" field.
const (
	CodeSuccess             = 0
	CodeValidation          = 40001
	CodeBusinessRule        = 40020
	CodeAuth                = 40100
	CodeLoginFailed         = 40101
	CodeRegisterFailed      = 40102
	CodeInvalidCredentials  = 40103
	CodeTokenExpired        = 40104
	CodeTokenInvalid        = 40105
	CodeTokenRevoked        = 40106
	CodeTokenTypeMismatch   = 40107
	CodeForbidden           = 40300
	CodeNotFound            = 40400
	CodeAlreadyExists       = 40900
	CodeConcurrencyConflict = 40901
	CodeServer              = 50000
	CodeFile                = 50010
)

// AppError is the single error type rendered by the error middleware.
type AppError struct {
	Kind    ErrorKind      `json:"-"`
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError of the same kind and code, so sentinel
// comparisons work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

// HTTPStatus maps the error kind to a status code.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists, KindConcurrencyConflict:
		return http.StatusConflict
	case KindBusinessRule:
		return http.StatusUnprocessableEntity
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindFile:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WithDetails attaches structured details and returns e.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// NewAppError creates an error with an explicit code.
func NewAppError(kind ErrorKind, code int, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func NewValidationError(format string, args ...any) *AppError {
	return NewAppError(KindValidation, CodeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError reports a missing entity, e.g. NewNotFoundError("tag", id).
func NewNotFoundError(entity string, id any) *AppError {
	return NewAppError(KindNotFound, CodeNotFound, fmt.Sprintf("%s %v not found", entity, id))
}

func NewAlreadyExistsError(format string, args ...any) *AppError {
	return NewAppError(KindAlreadyExists, CodeAlreadyExists, fmt.Sprintf(format, args...))
}

func NewBusinessRuleError(format string, args ...any) *AppError {
	return NewAppError(KindBusinessRule, CodeBusinessRule, fmt.Sprintf(format, args...))
}

func NewPermissionDeniedError(format string, args ...any) *AppError {
	return NewAppError(KindPermissionDenied, CodeForbidden, fmt.Sprintf(format, args...))
}

func NewConcurrencyConflictError() *AppError {
	return NewAppError(KindConcurrencyConflict, CodeConcurrencyConflict,
		"the record was modified by someone else, reload and try again")
}

func NewUnauthorizedError(code int, message string) *AppError {
	return NewAppError(KindUnauthorized, code, message)
}

// NewFileError wraps an object storage failure.
func NewFileError(message string, err error) *AppError {
	e := NewAppError(KindFile, CodeFile, message)
	e.Err = err
	return e
}

// NewInternalError wraps an unexpected failure; the message never reaches clients.
func NewInternalError(err error) *AppError {
	e := NewAppError(KindInternal, CodeServer, "internal server error")
	e.Err = err
	return e
}

// Sentinels for errors.Is checks.
var (
	ErrTokenExpired      = NewUnauthorizedError(CodeTokenExpired, "token has expired")
	ErrTokenInvalid      = NewUnauthorizedError(CodeTokenInvalid, "invalid token")
	ErrTokenRevoked      = NewUnauthorizedError(CodeTokenRevoked, "token has been revoked")
	ErrTokenTypeMismatch = NewUnauthorizedError(CodeTokenTypeMismatch, "token type mismatch")
	ErrNotAuthenticated  = NewUnauthorizedError(CodeAuth, "authentication required")
	ErrInvalidCredential = NewUnauthorizedError(CodeInvalidCredentials, "invalid username or password")
)

// AsAppError extracts an *AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an *AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}

// OAuth2Error represents an OAuth2 error response (RFC 6749)
type OAuth2Error struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

// NewOAuth2Error creates a new OAuth2 error response
func NewOAuth2Error(error, description string) OAuth2Error {
	return OAuth2Error{
		Error:            error,
		ErrorDescription: description,
	}
}
