package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeMalformedDirective   ErrorCode = "MALFORMED_DIRECTIVE"
	ErrCodeInvalidScopeType     ErrorCode = "INVALID_SCOPE_TYPE"
	ErrCodeMissingRoleParameter ErrorCode = "MISSING_ROLE_PARAMETER"
	ErrCodePasswordPolicy       ErrorCode = "PASSWORD_POLICY_VIOLATION"
	ErrCodePasswordMismatch     ErrorCode = "PASSWORD_CONFIRMATION_MISMATCH"

	ErrCodeUserNotFound    ErrorCode = "USER_NOT_FOUND"
	ErrCodeRoleNotFound    ErrorCode = "ROLE_NOT_FOUND"
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeGrantNotFound   ErrorCode = "GRANT_NOT_FOUND"

	ErrCodeDuplicateEmail    ErrorCode = "DUPLICATE_EMAIL"
	ErrCodeDuplicateRoleCode ErrorCode = "DUPLICATE_ROLE_CODE"
	ErrCodeReservedRoleCode  ErrorCode = "RESERVED_ROLE_CODE"

	ErrCodeSystemRoleImmutable ErrorCode = "SYSTEM_ROLE_IMMUTABLE"
	ErrCodePermissionDenied    ErrorCode = "PERMISSION_DENIED"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeTwoFactorRequired  ErrorCode = "TWO_FACTOR_REQUIRED"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeSessionRevoked     ErrorCode = "SESSION_REVOKED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

// Is makes sentinel comparison via errors.Is work on the type/code pair, so
// services can wrap the package-level vars below with WithCause/WithDetails.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

var (
	ErrMalformedDirective   = NewValidationError("malformed scope directive", ErrCodeMalformedDirective)
	ErrInvalidScopeType     = NewValidationError("scope type must be allow or deny", ErrCodeInvalidScopeType)
	ErrMissingRoleParameter = NewValidationError("required role parameter is missing or blank", ErrCodeMissingRoleParameter)

	ErrUserNotFound    = NewNotFoundError("User not found", ErrCodeUserNotFound)
	ErrRoleNotFound    = NewNotFoundError("Role not found", ErrCodeRoleNotFound)
	ErrSessionNotFound = NewNotFoundError("Session not found", ErrCodeSessionNotFound)
	ErrGrantNotFound   = NewNotFoundError("Permission grant not found", ErrCodeGrantNotFound)

	ErrDuplicateEmail    = NewConflictError("Email is already registered", ErrCodeDuplicateEmail)
	ErrDuplicateRoleCode = NewConflictError("Role code already exists", ErrCodeDuplicateRoleCode)
	ErrReservedRoleCode  = NewConflictError("Role code is reserved", ErrCodeReservedRoleCode)

	ErrSystemRoleImmutable = NewForbiddenError("System roles cannot be modified or deleted", ErrCodeSystemRoleImmutable)
	ErrPermissionDenied    = NewForbiddenError("Insufficient permissions", ErrCodePermissionDenied)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrTwoFactorRequired  = NewUnauthorizedError("Two-factor verification required", ErrCodeTwoFactorRequired)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
	ErrSessionRevoked     = NewUnauthorizedError("Session has been revoked", ErrCodeSessionRevoked)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
