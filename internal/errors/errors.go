package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for the bank ledger
var (
	ErrBankNotFound        = errors.New("bank not found")
	ErrClientNotFound      = errors.New("client not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")

	ErrBankAlreadyExists   = errors.New("bank already exists")
	ErrClientAlreadyExists = errors.New("client already exists")

	ErrInvalidID              = errors.New("invalid ID")
	ErrSelfTransfer           = errors.New("source and destination accounts cannot be the same")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrFutureDatedTransaction = errors.New("transaction date is in the future")
	ErrForbidden              = errors.New("actor is not allowed to perform this operation")
	ErrInsufficientFunds      = errors.New("insufficient funds")

	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("'%s': %s", f.Field, f.Message))
	}
	return "validation error on " + strings.Join(parts, "; ")
}

// Add records a violation on field. Returns the receiver for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// OrNil returns nil when no violations were recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func NewValidationError(field, message string) error {
	return (&ValidationError{}).Add(field, message)
}

// ConstraintError reports a delete blocked by a RESTRICT reference.
type ConstraintError struct {
	Entity string
	Reason string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violation on %s: %s", e.Entity, e.Reason)
}

func NewConstraintError(entity, reason string) error {
	return &ConstraintError{
		Entity: entity,
		Reason: reason,
	}
}

// StorageError wraps a failure of the storage layer. It is safe to retry the
// request that produced it. When Indeterminate is true the failure happened
// while committing and the caller must re-query to learn the outcome.
type StorageError struct {
	Operation     string
	Cause         error
	indeterminate bool
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during '%s': %v", e.Operation, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

func (e *StorageError) Indeterminate() bool {
	return e.indeterminate
}

func NewStorageError(operation string, cause error) error {
	return &StorageError{
		Operation: operation,
		Cause:     cause,
	}
}

func NewIndeterminateError(operation string, cause error) error {
	return &StorageError{
		Operation:     operation,
		Cause:         cause,
		indeterminate: true,
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrBankNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrBankAlreadyExists) || errors.Is(err, ErrClientAlreadyExists)
}

func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

func IsConstraintError(err error) bool {
	var constraintErr *ConstraintError
	return errors.As(err, &constraintErr)
}

func IsStorageError(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}

// IsTransferRejection reports whether err is one of the transfer precondition
// failures. These are terminal and never retried.
func IsTransferRejection(err error) bool {
	return errors.Is(err, ErrSelfTransfer) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrFutureDatedTransaction) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInsufficientFunds)
}

// Is and As re-export the standard library helpers so callers importing this
// package under the name errors keep access to them.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
