// Package apperror defines the error taxonomy shared by every layer.
//
// Each AppError carries a sentinel "kind" (ErrNotFound, ErrStorage, ...) and,
// optionally, the underlying cause. Both are reachable with errors.Is/errors.As
// because Unwrap returns them as a pair:
//
//	err := apperror.Storage("creating note", sqlErr)
//	errors.Is(err, apperror.ErrStorage) // true
//	errors.Is(err, sqlErr)              // true
//
// Handlers map kinds to HTTP status codes (see handler/response.go); the
// provisioning path only logs them.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrConfiguration marks a required setting that is absent or malformed.
	ErrConfiguration = errors.New("configuration error")
	// ErrProvisioning marks a control-plane failure other than "not found".
	ErrProvisioning = errors.New("provisioning error")
	// ErrProvisioningTimeout marks a tenant store that never became ready
	// within the polling budget.
	ErrProvisioningTimeout = errors.New("provisioning timeout")
	// ErrStorage marks a failed read or write against a tenant store.
	ErrStorage = errors.New("storage error")
)

type AppError struct {
	Err     error  // kind sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// MissingConfig reports one or more required settings that are not set.
func MissingConfig(keys ...string) *AppError {
	return &AppError{
		Err:     ErrConfiguration,
		Message: fmt.Sprintf("missing required configuration: %s", strings.Join(keys, ", ")),
		Field:   strings.Join(keys, ","),
	}
}

// InvalidConfig reports a setting that is present but unusable.
func InvalidConfig(key, message string) *AppError {
	return &AppError{
		Err:     ErrConfiguration,
		Message: fmt.Sprintf("invalid configuration %s: %s", key, message),
		Field:   key,
	}
}

func Provisioning(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrProvisioning,
		Message: message,
		Cause:   cause,
	}
}

func ProvisioningTimeout(tenantKey string, cause error) *AppError {
	return &AppError{
		Err:     ErrProvisioningTimeout,
		Message: fmt.Sprintf("tenant %s did not become ready", tenantKey),
		Cause:   cause,
	}
}

func Storage(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStorage,
		Message: op,
		Cause:   cause,
	}
}
