// Package domainerr holds the closed set of errors returned by the ledger and
// the registries. Callers match them with errors.Is and errors.As.
package domainerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrNotFound is matched by every not-found failure.
var ErrNotFound = errors.New("not found")

// NotFoundError names the entity and id that could not be resolved.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound builds a NotFoundError for entity and id.
func NotFound(entity string, id uint) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// InsufficientInventoryError is returned when a lot cannot cover the requested grams.
type InsufficientInventoryError struct {
	MaterialID uint
	Available  float64
	Requested  float64
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("not enough material %d: %g available, %g requested", e.MaterialID, e.Available, e.Requested)
}

// StorageError wraps a failure returned by the persistence layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Storage wraps err as a StorageError for op. It returns nil when err is nil and
// passes domain errors through unchanged.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		notFound     *NotFoundError
		insufficient *InsufficientInventoryError
		invalid      *ValidationError
		storage      *StorageError
	)
	if errors.As(err, &notFound) || errors.As(err, &insufficient) || errors.As(err, &invalid) || errors.As(err, &storage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ValidationError reports which fields of an input failed which rules.
type ValidationError struct {
	Fields map[string]string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid input: %v", e.Err)
	}
	parts := make([]string, 0, len(e.Fields))
	for field, tag := range e.Fields {
		parts = append(parts, field+"="+tag)
	}
	sort.Strings(parts)
	return "invalid input: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid converts a validator error into a ValidationError. Other errors are wrapped as is.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Err: err}
	}
	fields := make(map[string]string, len(verrs))
	for _, ve := range verrs {
		fields[ve.Field()] = ve.Tag()
	}
	return &ValidationError{Fields: fields, Err: err}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Check validates v against its `validate` struct tags.
func Check(v any) error {
	return Invalid(validate.Struct(v))
}
