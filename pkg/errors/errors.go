// Package errors provides custom error types for the confini system.
// These errors enable programmatic error checking across the build
// stages and let callers decide which failures are fatal and which only
// skip a division or a release.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// As and Is re-export the standard library helpers so callers need a
// single errors import.
var (
	As = errors.As
	Is = errors.Is
)

// Common sentinel errors for the confini system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrAcquisition indicates that a remote input could not be obtained
	ErrAcquisition = errors.New("acquisition failed")

	// ErrEngine indicates that the geometry engine failed on a division
	ErrEngine = errors.New("geometry engine failure")

	// ErrSchema indicates that tables do not have the columns or keys the catalog declares
	ErrSchema = errors.New("schema mismatch")

	// ErrConsolidation indicates that a release could not be merged into the registry
	ErrConsolidation = errors.New("consolidation failed")

	// ErrCycle indicates a cycle in the division parent graph
	ErrCycle = errors.New("dependency cycle")

	// ErrUnsupported indicates an operation the selected backend cannot perform
	ErrUnsupported = errors.New("unsupported")
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
	Value   any
	Message string
	Err     error
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

// Unwrap implements errors.Unwrap
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// AcquisitionError reports a failed download or decode of a remote input.
// Fatal is set for the national base registry; a release archive failure
// only skips the release.
type AcquisitionError struct {
	Source     string
	URL        string
	StatusCode int
	Fatal      bool
	Err        error
}

// Error implements the error interface
func (e *AcquisitionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("acquisition of %s from %s failed (status %d): %v", e.Source, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("acquisition of %s from %s failed: %v", e.Source, e.URL, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *AcquisitionError) Is(target error) bool {
	return target == ErrAcquisition
}

// NewAcquisitionError creates a new AcquisitionError
func NewAcquisitionError(source, url string, fatal bool, err error) *AcquisitionError {
	return &AcquisitionError{Source: source, URL: url, Fatal: fatal, Err: err}
}

// EngineError reports a geometry engine failure on one division.
// Diagnostics carries engine messages such as offending points.
type EngineError struct {
	Operation   string
	Release     string
	Division    string
	Diagnostics []string
	Err         error
}

// Error implements the error interface
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("engine %s failed for %s/%s", e.Operation, e.Release, e.Division)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Diagnostics) > 0 {
		msg += " [" + strings.Join(e.Diagnostics, "; ") + "]"
	}
	return msg
}

// Unwrap implements errors.Unwrap
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *EngineError) Is(target error) bool {
	return target == ErrEngine
}

// NewEngineError creates a new EngineError
func NewEngineError(operation, release, division string, err error, diagnostics ...string) *EngineError {
	return &EngineError{
		Operation:   operation,
		Release:     release,
		Division:    division,
		Diagnostics: diagnostics,
		Err:         err,
	}
}

// SchemaError reports a missing key or field, an unparsable key, or a
// column name collision. It is always fatal.
type SchemaError struct {
	Table   string
	Column  string
	Message string
	Err     error
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema error in %s column %s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("schema error in %s: %s", e.Table, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// NewSchemaError creates a new SchemaError
func NewSchemaError(table, column, message string) *SchemaError {
	return &SchemaError{Table: table, Column: column, Message: message}
}

// ConsolidationError reports a release that could not be merged into
// the registry. The release is omitted and the merge continues.
type ConsolidationError struct {
	Release string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ConsolidationError) Error() string {
	return fmt.Sprintf("cannot consolidate release %s: %s", e.Release, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConsolidationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConsolidationError) Is(target error) bool {
	return target == ErrConsolidation
}

// NewConsolidationError creates a new ConsolidationError
func NewConsolidationError(release, message string, err error) *ConsolidationError {
	return &ConsolidationError{Release: release, Message: message, Err: err}
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
	Format  string // "json", "yaml", "csv", etc.
	File    string
	Line    int
	Column  int
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("parse error in %s at %s:%d:%d: %s", e.Format, e.File, e.Line, e.Column, e.Message)
	}
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
	Operation string // "read", "write", "create", "rename", "open", "close"
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

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsAcquisition checks if an error is an acquisition error
func IsAcquisition(err error) bool {
	return errors.Is(err, ErrAcquisition)
}

// IsFatalAcquisition reports whether err carries an acquisition error
// that must stop the run.
func IsFatalAcquisition(err error) bool {
	var acq *AcquisitionError
	return errors.As(err, &acq) && acq.Fatal
}

// IsEngine checks if an error is a geometry engine error
func IsEngine(err error) bool {
	return errors.Is(err, ErrEngine)
}

// IsSchema checks if an error is a schema error
func IsSchema(err error) bool {
	return errors.Is(err, ErrSchema)
}

// IsConsolidation checks if an error is a consolidation error
func IsConsolidation(err error) bool {
	return errors.Is(err, ErrConsolidation)
}

// IsCycle checks if an error reports a dependency cycle
func IsCycle(err error) bool {
	return errors.Is(err, ErrCycle)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapEngine wraps an error as an EngineError
func WrapEngine(operation, release, division string, err error) error {
	if err == nil {
		return nil
	}
	return NewEngineError(operation, release, division, err)
}
