// Package kerrors defines the error kinds the pipeline can raise.
//
// Components never retry and never fall back to alternative physics; they
// either return a value or return one of these kinds, wrapped with the
// component that raised it.
package kerrors

import (
	"errors"
	"fmt"
)

// Kind identifies the category of failure.
type Kind int

const (
	// KindMalformedInput is raised for unparseable input: by the CSV Decoder
	// (tokenizing failure, no header row found, or no data rows remain), by
	// the pipeline when no time channel resolves, and by the CLI when a
	// calibration samples file cannot be parsed.
	KindMalformedInput Kind = iota
	// KindInsufficientSamples is raised by the Calibration Engine when a
	// phase buffer is under-filled.
	KindInsufficientSamples
	// KindConfigurationInvalid is raised on non-positive mass/diameter/teeth
	// counts or min_rpm >= max_rpm.
	KindConfigurationInvalid
)

func (k Kind) String() string {
	switch k {
	case KindMalformedInput:
		return "malformed-input"
	case KindInsufficientSamples:
		return "insufficient-samples"
	case KindConfigurationInvalid:
		return "configuration-invalid"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the core. It names the
// offending component and wraps the underlying cause.
type Error struct {
	Kind      Kind
	Component string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Component, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error for the named component.
func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

// Wrap builds an Error for the named component around an existing cause.
func Wrap(kind Kind, component, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, if err is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
