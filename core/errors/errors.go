// Package errors provides standardized error types and helpers for the cadenza codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrLex indicates a lexical error in source text
	ErrLex = errors.New("lexical error")
	// ErrParse indicates a grammar violation during parsing
	ErrParse = errors.New("parse error")
	// ErrConversion indicates a failure translating between AST and score model
	ErrConversion = errors.New("conversion error")
	// ErrNotImplemented indicates a construct the converter does not handle yet
	ErrNotImplemented = errors.New("not implemented")
	// ErrUnresolved indicates a cross-reference left dangling at end of input
	ErrUnresolved = errors.New("unresolved cross-reference")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
)

// LexError represents a lexical error with a byte offset into the source.
type LexError struct {
	Offset  int    // Byte offset where the error was detected
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Offset, e.Message)
}

func (e *LexError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrLex
}

// ParseError represents a grammar violation with source position context.
type ParseError struct {
	Offset   int    // Byte offset of the offending token
	Expected string // Production or token that was expected
	Got      string // Token text actually seen (may be empty at EOF)
	Err      error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Got != "" {
		return fmt.Sprintf("parse error at offset %d: expected %s, got %q", e.Offset, e.Expected, e.Got)
	}
	return fmt.Sprintf("parse error at offset %d: expected %s", e.Offset, e.Expected)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrParse
}

// ConversionError represents a failure during import or export.
type ConversionError struct {
	Construct string // Source construct being converted (e.g., "repeat", "figured bass")
	Reason    string // Why the conversion failed
	Err       error  // Underlying error, if any
}

func (e *ConversionError) Error() string {
	if e.Construct != "" {
		return fmt.Sprintf("cannot convert %s: %s", e.Construct, e.Reason)
	}
	return fmt.Sprintf("conversion failed: %s", e.Reason)
}

func (e *ConversionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrConversion
}

// NotImplementedError marks a construct that is recognized but not yet supported.
// It is distinct from ConversionError so callers can skip rather than abort.
type NotImplementedError struct {
	Construct string // Construct that is unsupported (e.g., "\\figuremode")
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("not implemented: %s", e.Construct)
}

func (e *NotImplementedError) Unwrap() error {
	return ErrNotImplemented
}

// UnresolvedError reports a start marker with no matching stop (or vice versa)
// remaining at end of input. It is surfaced as a warning, never as a hard failure.
type UnresolvedError struct {
	Kind   string // Cross-reference kind ("tie", "slur", "tuplet", "glissando", "tremolo")
	Origin string // Identifier of the element carrying the dangling marker
	Detail string // Scope details useful for diagnostics
}

func (e *UnresolvedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("unresolved %s starting at %s (%s)", e.Kind, e.Origin, e.Detail)
	}
	return fmt.Sprintf("unresolved %s starting at %s", e.Kind, e.Origin)
}

func (e *UnresolvedError) Unwrap() error {
	return ErrUnresolved
}

// Helper functions for creating common errors

// NewLex creates a LexError
func NewLex(offset int, message string) *LexError {
	return &LexError{
		Offset:  offset,
		Message: message,
	}
}

// NewParse creates a ParseError
func NewParse(offset int, expected, got string) *ParseError {
	return &ParseError{
		Offset:   offset,
		Expected: expected,
		Got:      got,
	}
}

// NewConversion creates a ConversionError
func NewConversion(construct, reason string) *ConversionError {
	return &ConversionError{
		Construct: construct,
		Reason:    reason,
	}
}

// NewNotImplemented creates a NotImplementedError
func NewNotImplemented(construct string) *NotImplementedError {
	return &NotImplementedError{Construct: construct}
}

// NewUnresolved creates an UnresolvedError
func NewUnresolved(kind, origin, detail string) *UnresolvedError {
	return &UnresolvedError{
		Kind:   kind,
		Origin: origin,
		Detail: detail,
	}
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
