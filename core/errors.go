package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a client-caused failure: the request must be corrected before retrying.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return fmt.Sprintf("%s: %s", err.Fields[0].Field, err.Fields[0].Error)
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error {
	return err.Err
}

// NotFoundError reports a missing referenced entity (ledger, template, student...).
type NotFoundError struct {
	Entity string
	Key    string
}

func NewNotFoundError(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

func (err NotFoundError) Error() string {
	if err.Key == "" {
		return err.Entity + " not found"
	}
	return fmt.Sprintf("%s %q not found", err.Entity, err.Key)
}

// ConflictError reports a write rejected because of existing state (duplicate ledger, reused idempotency key).
type ConflictError struct {
	Msg string
}

func NewConflictError(msg string) error {
	return &ConflictError{Msg: msg}
}

func (err ConflictError) Error() string {
	return err.Msg
}

// TransactionError reports a failed atomic unit of work. Nothing was committed, so the
// whole operation may be retried.
type TransactionError struct {
	Err error
}

func NewTransactionError(err error) error {
	return &TransactionError{Err: err}
}

func (err TransactionError) Error() string {
	if err.Err == nil {
		return "transaction failed"
	}
	return "transaction failed: " + err.Err.Error()
}

func (err TransactionError) Unwrap() error {
	return err.Err
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

func IsTransaction(err error) bool {
	_, ok := errors.Cause(err).(*TransactionError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
