package datastore

import (
	"errors"
	"fmt"
)

// Standard datastore errors
var (
	// ErrNotInitialized is returned when an operation is attempted before
	// Initialize completed or after Close.
	ErrNotInitialized = errors.New("store is not initialized")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInvalidConfiguration is returned when the configuration is invalid.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnknownBackend is returned when no adapter is registered for a
	// backend kind.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrOperationNotSupported is returned when the backend genuinely
	// lacks the requested capability.
	ErrOperationNotSupported = errors.New("operation not supported by this backend")

	// ErrInvalidOperation is returned when the caller violated a
	// contractual precondition.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrQueryFailed is returned when the backend rejected a well-formed
	// call. The native error is always attached as the cause.
	ErrQueryFailed = errors.New("query failed")
)

// QueryError wraps a backend-native error with operation context.
// The native message is preserved, never swallowed.
type QueryError struct {
	Kind      Kind
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Operation, e.Cause)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error.
func (e *QueryError) Is(target error) bool {
	if errors.Is(target, ErrQueryFailed) {
		return true
	}
	return errors.Is(e.Cause, target)
}

// NewQueryError creates a new QueryError.
func NewQueryError(kind Kind, operation string, cause error) *QueryError {
	return &QueryError{Kind: kind, Operation: operation, Cause: cause}
}

// WrapQueryError wraps an error with backend context. Errors already
// carrying datastore context are returned as-is.
func WrapQueryError(kind Kind, operation string, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	var ue *UnsupportedOperationError
	if errors.As(err, &ue) {
		return err
	}
	var ie *InvalidOperationError
	if errors.As(err, &ie) {
		return err
	}
	return NewQueryError(kind, operation, err)
}

// UnsupportedOperationError is returned when a backend lacks a capability.
type UnsupportedOperationError struct {
	Kind      Kind
	Operation string
	Reason    string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s does not support %s: %s", e.Kind, e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s does not support %s", e.Kind, e.Operation)
}

// Is checks if the error is ErrOperationNotSupported.
func (e *UnsupportedOperationError) Is(target error) bool {
	return errors.Is(target, ErrOperationNotSupported)
}

// NewUnsupportedOperationError creates a new UnsupportedOperationError.
func NewUnsupportedOperationError(kind Kind, operation, reason string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Kind: kind, Operation: operation, Reason: reason}
}

// InvalidOperationError is returned when a caller violated a
// contractual precondition of an operation.
type InvalidOperationError struct {
	Kind      Kind
	Operation string
	Reason    string
}

// Error implements the error interface.
func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid %s on %s: %s", e.Operation, e.Kind, e.Reason)
}

// Is checks if the error is ErrInvalidOperation.
func (e *InvalidOperationError) Is(target error) bool {
	return errors.Is(target, ErrInvalidOperation)
}

// NewInvalidOperationError creates a new InvalidOperationError.
func NewInvalidOperationError(kind Kind, operation, reason string) *InvalidOperationError {
	return &InvalidOperationError{Kind: kind, Operation: operation, Reason: reason}
}

// ConnectionError is returned when a connection error occurs.
type ConnectionError struct {
	Kind  Kind
	Host  string
	Port  int
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s at %s:%d: %v", e.Kind, e.Host, e.Port, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is ErrConnectionFailed.
func (e *ConnectionError) Is(target error) bool {
	if errors.Is(target, ErrConnectionFailed) {
		return true
	}
	return errors.Is(e.Cause, target)
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(kind Kind, host string, port int, cause error) *ConnectionError {
	return &ConnectionError{Kind: kind, Host: host, Port: port, Cause: cause}
}

// ConfigurationError is returned when a required configuration field is
// missing or invalid. Field names the offending field.
type ConfigurationError struct {
	Kind   Kind
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for %s: field '%s': %s", e.Kind, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration for %s: %s", e.Kind, e.Reason)
}

// Is checks if the error is ErrInvalidConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return errors.Is(target, ErrInvalidConfiguration)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(kind Kind, field, reason string) *ConfigurationError {
	return &ConfigurationError{Kind: kind, Field: field, Reason: reason}
}

// IsUnsupported checks if an error indicates an unsupported operation.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrOperationNotSupported)
}

// IsInvalidOperation checks if an error indicates a violated precondition.
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsConnectionError checks if an error is a connection error.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// IsConfigurationError checks if an error is a configuration error.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

// IsNotInitialized checks if an error is a not-initialized guard failure.
func IsNotInitialized(err error) bool {
	return errors.Is(err, ErrNotInitialized)
}
