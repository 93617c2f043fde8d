package model

import (
	"errors"
	"fmt"
)

var (
	// Run-level errors
	ErrConfiguration       = errors.New("configuration error")
	ErrReferenceResolution = errors.New("reference resolution error")
	ErrRunInProgress       = errors.New("run already in progress")
	ErrRunNotFound         = errors.New("run not found")
	ErrUnknownPhase        = errors.New("unknown sweep phase")

	// Ledger related errors
	ErrRowNotFound       = errors.New("ledger row not found")
	ErrRowAlreadyRemoved = errors.New("ledger row already removed")

	// File source related errors
	ErrFileNotFound = errors.New("file not found")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

// ConfigurationError reports a missing configuration source or field. It is
// fatal to the run and raised before any side effect.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func NewConfigurationError(field string, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	msg := "configuration"
	if e.Field != "" {
		msg += " " + e.Field
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

// ReferenceResolutionError reports a folder or file reference that cannot be
// parsed or resolved. Discovery aborts before enumeration begins.
type ReferenceResolutionError struct {
	Ref string
	Err error
}

func (e *ReferenceResolutionError) Error() string {
	return fmt.Sprintf("resolve reference %q: %v", e.Ref, e.Err)
}

func (e *ReferenceResolutionError) Unwrap() []error {
	return []error{ErrReferenceResolution, e.Err}
}
