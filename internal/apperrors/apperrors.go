package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping and retry policy.
// InvalidTransition and Validation are never retryable; Storage is safe to
// retry because every transition re-reads state before appending.
type Kind string

const (
	KindInvalidTransition Kind = "invalid_transition"
	KindValidation        Kind = "validation"
	KindDuplicateBinding  Kind = "duplicate_binding"
	KindNotFound          Kind = "not_found"
	KindStorage           Kind = "storage"
)

// InvalidTransitionError rejects an action that is not legal for the
// entity's current state and history. Fields are plain strings so the order
// and service-action machines share one error shape.
type InvalidTransitionError struct {
	Action string
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("action %s not allowed in state %s: %s", e.Action, e.From, e.Reason)
	}
	return fmt.Sprintf("cannot transition from %s to %s via %s", e.From, e.To, e.Action)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// DuplicateBindingError means another scan already claimed the service
// action for this tracking number. The caller should treat the scan as a
// fresh order instead.
type DuplicateBindingError struct {
	TrackingNumber string
}

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("service action for %s already bound to another order", e.TrackingNumber)
}

type NotFoundError struct {
	Resource string
	Ref      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Ref)
}

// StorageError wraps a persistence failure; the whole transition may be
// retried by the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func KindOf(err error) Kind {
	var it *InvalidTransitionError
	if errors.As(err, &it) {
		return KindInvalidTransition
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	var db *DuplicateBindingError
	if errors.As(err, &db) {
		return KindDuplicateBinding
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return KindNotFound
	}
	return KindStorage
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsDuplicateBinding(err error) bool {
	var db *DuplicateBindingError
	return errors.As(err, &db)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsInvalidTransition(err error) bool {
	var it *InvalidTransitionError
	return errors.As(err, &it)
}
