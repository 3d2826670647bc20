// Package errors provides standardized error types and helpers for the siena-gear codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrInvalidConfig indicates a fatal configuration or schema error
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnrecognizedReport indicates a report file name no parser claims
	ErrUnrecognizedReport = errors.New("unrecognized report")
	// ErrSubjectUnknown indicates the backend cannot resolve a subject code
	ErrSubjectUnknown = errors.New("subject unknown")
	// ErrToolNotFound indicates the external analysis binary could not be located
	ErrToolNotFound = errors.New("tool not found")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// ConfigTypeError reports a schema entry with an unsupported or mismatched
// value type. It is always fatal.
type ConfigTypeError struct {
	Key  string // Schema key (e.g., "VENT", "BET")
	Type string // Declared or observed type
	Err  error  // Underlying error, if any
}

func (e *ConfigTypeError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("invalid option type for %s: %s", e.Key, e.Type)
	}
	return fmt.Sprintf("invalid option type: %s", e.Type)
}

// Unwrap returns the class sentinel plus the underlying cause, so errors.Is
// matches both.
func (e *ConfigTypeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidConfig, e.Err}
	}
	return []error{ErrInvalidConfig}
}

// ValueValidationError reports a config value that failed a type-specific
// format check. It is always fatal.
type ValueValidationError struct {
	Key   string // Schema key (e.g., "TOP")
	Value string // Offending value
	Err   error  // Underlying error, if any
}

func (e *ValueValidationError) Error() string {
	return fmt.Sprintf("%s value %q is not a number", e.Key, e.Value)
}

func (e *ValueValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidConfig, e.Err}
	}
	return []error{ErrInvalidConfig}
}

// InputError reports an unusable input image or input combination.
type InputError struct {
	Name   string // Input name from the manifest (e.g., "NIFTI_1")
	Path   string // File path involved, if any
	Reason string // Human-readable explanation
	Err    error  // Underlying error, if any
}

func (e *InputError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid input %s (%s): %s", e.Name, e.Path, e.Reason)
	}
	if e.Name != "" {
		return fmt.Sprintf("invalid input %s: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

func (e *InputError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidInput, e.Err}
	}
	return []error{ErrInvalidInput}
}

// BackendError reports a failed metadata-backend call. Callers treat it as
// recoverable; nothing in the run aborts on it.
type BackendError struct {
	Operation string // Operation being performed (e.g., "write metadata", "resolve subject")
	Err       error  // Underlying error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("metadata backend: %s: %v", e.Operation, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "JSON", "YAML", "manifest")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidConfig, e.Err}
	}
	return []error{ErrInvalidConfig}
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUnsupported, e.Err}
	}
	return []error{ErrUnsupported}
}

// Helper functions for creating common errors

// NewConfigType creates a ConfigTypeError
func NewConfigType(key, typ string) *ConfigTypeError {
	return &ConfigTypeError{
		Key:  key,
		Type: typ,
	}
}

// NewValueValidation creates a ValueValidationError
func NewValueValidation(key, value string) *ValueValidationError {
	return &ValueValidationError{
		Key:   key,
		Value: value,
	}
}

// NewInput creates an InputError
func NewInput(name, path, reason string) *InputError {
	return &InputError{
		Name:   name,
		Path:   path,
		Reason: reason,
	}
}

// NewBackend creates a BackendError
func NewBackend(operation string, err error) *BackendError {
	return &BackendError{
		Operation: operation,
		Err:       err,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// IsFatal reports whether err must abort the run with exit code 1 before any
// output processing. Fatal errors are configuration and input failures; tool
// exit codes travel outside the error path entirely.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrToolNotFound)
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
