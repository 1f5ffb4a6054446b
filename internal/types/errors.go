package types

import (
	"errors"
	"fmt"
)

// KernelErrorKind is the closed taxonomy of error kinds the kernel
// surfaces to its callers. Kinds, not concrete Go types, are the unit
// of error handling here: callers match with errors.Is against the
// sentinel values below.
type KernelErrorKind string

const (
	KindValidation      KernelErrorKind = "ValidationError"
	KindResourceLimit   KernelErrorKind = "ResourceLimitError"
	KindIntegrity       KernelErrorKind = "IntegrityError"
	KindVersionMismatch KernelErrorKind = "VersionMismatchError"
	KindDeadlock        KernelErrorKind = "DeadlockSuspected"
)

// Sentinel errors, one per kind, for errors.Is matching against a
// KernelError's wrapped kind.
var (
	ErrValidation      = errors.New(string(KindValidation))
	ErrResourceLimit   = errors.New(string(KindResourceLimit))
	ErrIntegrity       = errors.New(string(KindIntegrity))
	ErrVersionMismatch = errors.New(string(KindVersionMismatch))
	ErrDeadlock        = errors.New(string(KindDeadlock))
)

func sentinelForKind(kind KernelErrorKind) error {
	switch kind {
	case KindValidation:
		return ErrValidation
	case KindResourceLimit:
		return ErrResourceLimit
	case KindIntegrity:
		return ErrIntegrity
	case KindVersionMismatch:
		return ErrVersionMismatch
	case KindDeadlock:
		return ErrDeadlock
	default:
		return errors.New(string(kind))
	}
}

// KernelError is a structured error carrying a stable kind string and
// a machine-readable details map, per the session-API error-handling
// contract. It wraps the kind's sentinel so callers can use errors.Is.
type KernelError struct {
	Kind    KernelErrorKind
	Message string
	Details map[string]any
}

func (e *KernelError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *KernelError) Unwrap() error {
	return sentinelForKind(e.Kind)
}

// NewKernelError constructs a KernelError of the given kind.
func NewKernelError(kind KernelErrorKind, message string, details map[string]any) *KernelError {
	return &KernelError{Kind: kind, Message: message, Details: details}
}
