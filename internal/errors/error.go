package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the kind of failure.
type Category string

const (
	CategoryBinding Category = "binding"
	CategoryStorage Category = "storage"
	CategoryCodec   Category = "codec"
	CategoryConfig  Category = "config"
	CategoryCLI     Category = "cli"
)

// Severity separates hard failures from degraded-mode warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Error is a structured error with a registered code, detail and suggestion.
type Error struct {
	// Code is the registered identifier (e.g., "E001").
	Code string

	Category Category
	Severity Severity

	// Message is a short description.
	Message string

	// Detail is instance-specific context, such as the key involved.
	Detail string

	// Suggestion is a hint on how to fix the problem.
	Suggestion string

	// Wrapped is the underlying cause, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// WithDetail adds instance-specific context.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// WithSuggestion overrides the registered fix suggestion.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// Wrap records the underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// IsWarning reports whether the error is a degraded-mode warning.
func (e *Error) IsWarning() bool {
	return e.Severity == SeverityWarning
}

// New creates an Error from a registered code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:     code,
			Severity: SeverityError,
			Message:  "Unknown error",
		}
	}
	return &Error{
		Code:       code,
		Category:   template.Category,
		Severity:   template.Severity,
		Message:    template.Message,
		Suggestion: template.Suggestion,
	}
}

// Newf creates an uncoded error with a formatted message.
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps err under code unless it already is an *Error.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err, or anything it wraps, carries code.
func HasCode(err error, code string) bool {
	return stderrors.Is(err, &Error{Code: code})
}
