// Package cacheerr defines the failure kinds surfaced by the compilation cache.
//
// Callers branch on the kind with errors.As or the Is* helpers; every error
// keeps its cause reachable through Unwrap.
package cacheerr

import (
	"errors"
	"fmt"
	"strings"
)

// InvalidInputError reports a request that was rejected before any I/O.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}

	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// InvalidInput builds an InvalidInputError for field.
func InvalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

// Diagnostic is a single message emitted by the external compiler.
type Diagnostic struct {
	Severity string
	Message  string
	Location string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Location != "" {
		b.WriteString(d.Location)
		b.WriteString(": ")
	}

	if d.Severity != "" {
		b.WriteString(d.Severity)
		b.WriteString(": ")
	}

	b.WriteString(d.Message)
	return b.String()
}

// CompilationFailedError reports that the external compiler (or the code
// populating a cache entry) failed. The entry is left invalid.
type CompilationFailedError struct {
	Description string
	Diagnostics []Diagnostic
	Err         error
}

func (e *CompilationFailedError) Error() string {
	msg := "compilation failed"
	if e.Description != "" {
		msg += " for " + e.Description
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	if len(e.Diagnostics) > 0 {
		lines := make([]string, 0, len(e.Diagnostics))
		for _, d := range e.Diagnostics {
			lines = append(lines, "  "+d.String())
		}

		msg += "\n" + strings.Join(lines, "\n")
	}

	return msg
}

func (e *CompilationFailedError) Unwrap() error {
	return e.Err
}

// CacheIOError reports that the store could not read, write or lock an entry.
type CacheIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CacheIOError) Unwrap() error {
	return e.Err
}

// CacheIO wraps err as a CacheIOError, or returns nil when err is nil.
func CacheIO(op, path string, err error) error {
	if err == nil {
		return nil
	}

	return &CacheIOError{Op: op, Path: path, Err: err}
}

// IsInvalidInput reports whether err is, or wraps, an InvalidInputError.
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

// IsCompilationFailed reports whether err is, or wraps, a CompilationFailedError.
func IsCompilationFailed(err error) bool {
	var target *CompilationFailedError
	return errors.As(err, &target)
}

// IsCacheIO reports whether err is, or wraps, a CacheIOError.
func IsCacheIO(err error) bool {
	var target *CacheIOError
	return errors.As(err, &target)
}
