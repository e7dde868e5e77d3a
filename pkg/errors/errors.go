// Package errors provides the typed errors used throughout jamfsync.
// They allow callers to check failure classes with errors.Is and errors.As
// instead of matching on message text.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors.
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptySource indicates the source directory returned no records
	ErrEmptySource = errors.New("empty source")

	// ErrSessionInUse indicates another sync session holds the lock
	ErrSessionInUse = errors.New("session in use")

	// ErrProtectedRecord indicates a delete was refused for a manually created record
	ErrProtectedRecord = errors.New("protected record")

	// ErrMappingPersistence indicates the mapping store could not be written
	ErrMappingPersistence = errors.New("mapping persistence failed")

	// ErrUnavailable indicates that the mirror is temporarily unavailable
	ErrUnavailable = errors.New("mirror unavailable")

	// ErrRateLimited indicates that the mirror rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// EmptySourceError is returned when the source snapshot has nothing to sync.
// A pass against an empty source would delete the whole mirror, so it is refused.
type EmptySourceError struct {
	Entity string
}

// Error implements the error interface
func (e *EmptySourceError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("source directory returned no %s records, refusing to sync", e.Entity)
	}
	return "source directory returned no records, refusing to sync"
}

// Is implements errors.Is support
func (e *EmptySourceError) Is(target error) bool {
	return target == ErrEmptySource
}

// NewEmptySourceError creates a new EmptySourceError
func NewEmptySourceError(entity string) *EmptySourceError {
	return &EmptySourceError{Entity: entity}
}

// SessionInUseError is returned when a second session is started while
// another one holds the exclusive lock.
type SessionInUseError struct {
	Lock string
	Err  error
}

// Error implements the error interface
func (e *SessionInUseError) Error() string {
	if e.Lock != "" {
		return fmt.Sprintf("sync session already running (lock %s)", e.Lock)
	}
	return "sync session already running"
}

// Unwrap implements errors.Unwrap
func (e *SessionInUseError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *SessionInUseError) Is(target error) bool {
	return target == ErrSessionInUse
}

// NewSessionInUseError creates a new SessionInUseError
func NewSessionInUseError(lock string, err error) *SessionInUseError {
	return &SessionInUseError{Lock: lock, Err: err}
}

// TransportError represents a non-success response or a failed request
// against the mirror API.
type TransportError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Endpoint, e.StatusCode, truncate(e.Body, 256))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %v", e.Method, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s %s failed", e.Method, e.Endpoint)
}

// Unwrap implements errors.Unwrap
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *TransportError) Is(target error) bool {
	if e.StatusCode == 429 {
		return target == ErrRateLimited
	}
	if e.StatusCode >= 500 {
		return target == ErrUnavailable
	}
	return false
}

// Retryable reports whether repeating the request may succeed.
func (e *TransportError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// NewTransportError creates a new TransportError
func NewTransportError(method, endpoint string, statusCode int, body string) *TransportError {
	return &TransportError{
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Body:       body,
	}
}

// MappingPersistenceError is returned when mapping entries could not be
// written after the mirror was already mutated. It is always fatal for the pass.
type MappingPersistenceError struct {
	Operation string
	Keys      []string
	Err       error
}

// Error implements the error interface
func (e *MappingPersistenceError) Error() string {
	if len(e.Keys) > 0 {
		return fmt.Sprintf("failed to %s mapping for %d identities (%s): %v",
			e.Operation, len(e.Keys), strings.Join(e.Keys, ", "), e.Err)
	}
	return fmt.Sprintf("failed to %s mapping: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *MappingPersistenceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *MappingPersistenceError) Is(target error) bool {
	return target == ErrMappingPersistence
}

// NewMappingPersistenceError creates a new MappingPersistenceError
func NewMappingPersistenceError(operation string, keys []string, err error) *MappingPersistenceError {
	return &MappingPersistenceError{Operation: operation, Keys: keys, Err: err}
}

// ProtectedRecordError is returned when a delete targets a mirror record
// that was not created by jamfsync.
type ProtectedRecordError struct {
	Entity      string
	IdentityKey string
	MirrorID    string
}

// Error implements the error interface
func (e *ProtectedRecordError) Error() string {
	return fmt.Sprintf("refusing to delete manually created %s %s (mirror id %s)", e.Entity, e.IdentityKey, e.MirrorID)
}

// Is implements errors.Is support
func (e *ProtectedRecordError) Is(target error) bool {
	return target == ErrProtectedRecord
}

// NewProtectedRecordError creates a new ProtectedRecordError
func NewProtectedRecordError(entity, identityKey, mirrorID string) *ProtectedRecordError {
	return &ProtectedRecordError{Entity: entity, IdentityKey: identityKey, MirrorID: mirrorID}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "rename", "open"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ResourceError represents an error during resource operations
type ResourceError struct {
	Operation string // "create", "update", "delete", "fetch"
	Resource  string // "person", "group", "mapping", "snapshot"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsEmptySource checks if an error is an empty source refusal
func IsEmptySource(err error) bool {
	return errors.Is(err, ErrEmptySource)
}

// IsSessionInUse checks if an error reports a concurrent session
func IsSessionInUse(err error) bool {
	return errors.Is(err, ErrSessionInUse)
}

// IsProtected checks if an error is a protected record refusal
func IsProtected(err error) bool {
	return errors.Is(err, ErrProtectedRecord)
}

// IsMappingPersistence checks if an error is a fatal mapping write failure
func IsMappingPersistence(err error) bool {
	return errors.Is(err, ErrMappingPersistence)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsUnavailable checks if an error indicates mirror unavailability
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapTransport wraps a request failure that produced no response
func WrapTransport(method, endpoint string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Method: method, Endpoint: endpoint, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
