// Package errors provides the structured error type used across the service.
// Service and engine errors are *AppError values so that handlers can map them
// to stable codes and status codes without leaking internal details.
package errors

import (
	stderrors "errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil && e.Message == "" {
		return e.Internal.Error()
	}
	return e.Message
}

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an *AppError carrying the same code, so a wrapped
// sentinel still matches errors.Is(err, ErrX).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Wrapf is WithMessage plus an internal cause.
func Wrapf(sentinel *AppError, internal error, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Portfolio errors.
var (
	ErrUserNotFound        = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrAssetNotFound       = &AppError{Code: "ASSET_NOT_FOUND", Message: "Asset not found", StatusCode: http.StatusNotFound}
	ErrTransactionNotFound = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrSyncLogNotFound     = &AppError{Code: "SYNC_LOG_NOT_FOUND", Message: "Sync log not found", StatusCode: http.StatusNotFound}
)

// Kind classifies price-sync and ticker errors so callers can branch on the
// failure class instead of matching message text.
type Kind string

// Error kinds. Each kind is also the Code of the sentinel of the same name.
const (
	KindUnresolvableAsset   Kind = "UNRESOLVABLE_ASSET"
	KindProviderUnreachable Kind = "PROVIDER_UNREACHABLE"
	KindPriceUnavailable    Kind = "PRICE_UNAVAILABLE"
	KindMalformedResponse   Kind = "MALFORMED_RESPONSE"
	KindInvalidQuery        Kind = "INVALID_QUERY"
	KindValidation          Kind = "VALIDATION_ERROR"
	KindInternal            Kind = "INTERNAL_ERROR"
)

// Price sync errors.
var (
	ErrUnresolvableAsset   = &AppError{Code: string(KindUnresolvableAsset), Message: "No market symbol can be derived for this asset", StatusCode: http.StatusUnprocessableEntity}
	ErrProviderUnreachable = &AppError{Code: string(KindProviderUnreachable), Message: "Market data provider is unreachable", StatusCode: http.StatusInternalServerError}
	ErrPriceUnavailable    = &AppError{Code: string(KindPriceUnavailable), Message: "No price available for this symbol", StatusCode: http.StatusNotFound}
	ErrMalformedResponse   = &AppError{Code: string(KindMalformedResponse), Message: "Market data provider returned an unexpected response", StatusCode: http.StatusInternalServerError}
	ErrInvalidQuery        = &AppError{Code: string(KindInvalidQuery), Message: "Search query must be at least 2 characters", StatusCode: http.StatusBadRequest}
	ErrValidation          = &AppError{Code: string(KindValidation), Message: "Request validation failed", StatusCode: http.StatusBadRequest}
)

var knownKinds = map[Kind]struct{}{
	KindUnresolvableAsset:   {},
	KindProviderUnreachable: {},
	KindPriceUnavailable:    {},
	KindMalformedResponse:   {},
	KindInvalidQuery:        {},
	KindValidation:          {},
}

// KindOf returns the error kind carried by err. Errors that are not part of the
// taxonomy classify as KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return KindInternal
	}
	k := Kind(appErr.Code)
	if _, ok := knownKinds[k]; ok {
		return k
	}
	return KindInternal
}

// Retryable reports whether an operation that failed with err may succeed if repeated.
func Retryable(err error) bool {
	return KindOf(err) == KindProviderUnreachable
}
