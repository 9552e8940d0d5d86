package model

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an error for retry and recovery logic, orthogonal
// to ErrorKind (which names where in the pipeline the error was raised).
type ErrorClass string

const (
	// ErrorClassFatal aborts the current command; no retry applies.
	ErrorClassFatal ErrorClass = "fatal"

	// ErrorClassWarning is recorded but does not abort the command.
	ErrorClassWarning ErrorClass = "warning"

	// ErrorClassTransient may succeed on retry (adapter I/O failures).
	ErrorClassTransient ErrorClass = "transient"
)

// ErrorKind is the closed taxonomy of §7: a stable, machine-checkable name
// for where in the pipeline a failure originated.
type ErrorKind string

const (
	ErrorKindConfigMissing        ErrorKind = "ConfigMissing"
	ErrorKindConfigParse          ErrorKind = "ConfigParse"
	ErrorKindConfigSchema         ErrorKind = "ConfigSchema"
	ErrorKindUnknownResourceType  ErrorKind = "UnknownResourceType"
	ErrorKindDuplicateResourceType ErrorKind = "DuplicateResourceType"
	ErrorKindPolicyMissingName    ErrorKind = "PolicyMissingName"
	ErrorKindPolicyNoBackend      ErrorKind = "PolicyNoBackend"
	ErrorKindReferenceUnknownType ErrorKind = "ReferenceUnknownType"
	ErrorKindReferenceUnresolved  ErrorKind = "ReferenceUnresolved"
	ErrorKindProviderValidation   ErrorKind = "ProviderValidation"
	ErrorKindNoProvider           ErrorKind = "NoProvider"
	ErrorKindBackendApplyFailed   ErrorKind = "BackendApplyFailed"
	ErrorKindNoRuntime            ErrorKind = "NoRuntime"
	ErrorKindCancelled            ErrorKind = "Cancelled"

	// ErrorKindPolicyBundleViolation is raised by the optional OPA
	// policy.Engine layer (SPEC_FULL.md §5.4), additive to the fixed
	// taxonomy above: a warning-severity Rego deny does not by itself
	// fail a command, matching PolicyNoBackend's non-fatal treatment.
	ErrorKindPolicyBundleViolation ErrorKind = "PolicyBundleViolation"

	// ErrorKindAdditionalServicesIgnored is raised by the Orchestration
	// Engine when a manifest declares more than one service (SPEC_FULL.md
	// §7 Open Question 1 decision): only services[0] is processed, and
	// the rest are surfaced here rather than silently dropped.
	ErrorKindAdditionalServicesIgnored ErrorKind = "AdditionalServicesIgnored"
)

// EngineError is a classified error carrying enough context for a CLI
// driver to print a precise, identifier-naming message without ever
// including resolved secret values (§7: "never include resolved secret
// values").
type EngineError struct {
	Kind    ErrorKind  `json:"kind"`
	Class   ErrorClass `json:"class"`
	Message string     `json:"message"`

	// Subject is the offending resource type, env var name, or backend
	// name, per §7's identifier-naming requirement.
	Subject string `json:"subject,omitempty"`

	Err error `json:"-"`
}

func (e *EngineError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Subject)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError constructs a fatal EngineError of the given kind.
func NewError(kind ErrorKind, message string) *EngineError {
	return &EngineError{Kind: kind, Class: ErrorClassFatal, Message: message}
}

// NewWarningError constructs a non-fatal EngineError of the given kind.
func NewWarningError(kind ErrorKind, message string) *EngineError {
	return &EngineError{Kind: kind, Class: ErrorClassWarning, Message: message}
}

// WithSubject attaches the offending identifier and returns the receiver.
func (e *EngineError) WithSubject(subject string) *EngineError {
	e.Subject = subject
	return e
}

// WithCause wraps an underlying error for errors.Unwrap chains.
func (e *EngineError) WithCause(err error) *EngineError {
	e.Err = err
	return e
}

// IsKind reports whether err is an *EngineError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsFatal reports whether err is a fatal-classed EngineError. Any other
// non-nil error that is not an EngineError also counts as fatal.
func IsFatal(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassFatal
	}
	return err != nil
}
