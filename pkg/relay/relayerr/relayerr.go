// Package relayerr defines the error taxonomy shared across the relay.
package relayerr

import (
	"errors"
	"fmt"
)

// Class categorizes relay errors by how they propagate.
type Class string

const (
	// ClassProvider marks a backing-service failure for one pipeline stage.
	// Absorbed by chain fallback; never surfaced to the far end.
	ClassProvider Class = "provider_failure"
	// ClassMalformed marks an unparseable envelope or missing required field.
	// Reported to the sender as a typed error reply; connection stays open.
	ClassMalformed Class = "malformed_input"
	// ClassDelivery marks a recipient send that failed after exhausted
	// retries. Logged; siblings are unaffected.
	ClassDelivery Class = "delivery_failure"
	// ClassConfig marks invalid configuration (e.g. a recipient with no
	// language). Skipped and logged, never retried.
	ClassConfig Class = "configuration_fault"
	// ClassFatal marks an unexpected internal fault in orchestration logic.
	// Logged at top level; may drop the triggering connection, never the
	// process.
	ClassFatal Class = "fatal"
)

// Error is the canonical relay error.
type Error struct {
	Class    Class
	Stage    string // pipeline stage, if any ("transcription", "translation", "synthesis")
	Provider string // provider tier name, if any
	Message  string
	Param    string // offending field for malformed input
	wrapped  error
}

func (e *Error) Error() string {
	switch {
	case e.Provider != "":
		return fmt.Sprintf("%s: %s/%s: %s", e.Class, e.Stage, e.Provider, e.Message)
	case e.Stage != "":
		return fmt.Sprintf("%s: %s: %s", e.Class, e.Stage, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Class, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// Retryable reports whether another attempt can reasonably succeed.
func (e *Error) Retryable() bool {
	switch e.Class {
	case ClassProvider, ClassDelivery:
		return true
	default:
		return false
	}
}

// Provider wraps a stage/tier failure.
func Provider(stage, provider string, err error) *Error {
	return &Error{
		Class:    ClassProvider,
		Stage:    stage,
		Provider: provider,
		Message:  err.Error(),
		wrapped:  err,
	}
}

// Malformed reports bad inbound input. param names the offending field and
// may be empty.
func Malformed(message, param string) *Error {
	return &Error{
		Class:   ClassMalformed,
		Message: message,
		Param:   param,
	}
}

// Delivery wraps a recipient send failure.
func Delivery(err error) *Error {
	return &Error{
		Class:   ClassDelivery,
		Message: err.Error(),
		wrapped: err,
	}
}

// Config reports an invalid-configuration fault.
func Config(message string) *Error {
	return &Error{
		Class:   ClassConfig,
		Message: message,
	}
}

// Fatal wraps an unexpected internal fault.
func Fatal(err error) *Error {
	return &Error{
		Class:   ClassFatal,
		Message: err.Error(),
		wrapped: err,
	}
}

// ClassOf extracts the Class from err. Errors outside the taxonomy are
// treated as fatal.
func ClassOf(err error) Class {
	var re *Error
	if errors.As(err, &re) && re != nil {
		return re.Class
	}
	return ClassFatal
}
