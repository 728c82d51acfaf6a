// Package errors defines the application error taxonomy shared by the
// domain, repositories, services and HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports malformed or out-of-range input to a value type,
// entity or use case.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

// ConflictError reports an attempt to create a duplicate unique key.
type ConflictError struct {
	Resource string
	Message  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Message)
}

// AdapterError wraps a failure of an outbound integration (WhatsApp, LLM).
type AdapterError struct {
	Adapter string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter: %v", e.Adapter, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// StorageError wraps a failed repository operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Validation returns a new ValidationError.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a new NotFoundError.
func NotFound(resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

// Conflict returns a new ConflictError.
func Conflict(resource, format string, args ...any) error {
	return &ConflictError{Resource: resource, Message: fmt.Sprintf(format, args...)}
}

// Adapter wraps err as an AdapterError. A nil err yields nil.
func Adapter(adapter string, err error) error {
	if err == nil {
		return nil
	}
	return &AdapterError{Adapter: adapter, Err: err}
}

// Storage wraps err as a StorageError. A nil err yields nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsAdapter(err error) bool {
	var target *AdapterError
	return errors.As(err, &target)
}

// HTTPStatus maps an error to the response status the API layer returns.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsAdapter(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
