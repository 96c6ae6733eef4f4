package classes

import (
	"errors"
	"fmt"
)

// ClassError reports a refused hierarchy operation.
type ClassError struct {
	Code    ClassErrorCode
	Class   string
	Message string
}

// ClassErrorCode categorizes hierarchy errors.
type ClassErrorCode string

const (
	// ErrCodeUnknownClass indicates a class name that is not defined.
	ErrCodeUnknownClass ClassErrorCode = "UNKNOWN_CLASS"

	// ErrCodeDuplicateClass indicates a redefinition of an existing class.
	ErrCodeDuplicateClass ClassErrorCode = "DUPLICATE_CLASS"

	// ErrCodeClassInUse indicates the class is still referenced by a
	// restriction, a subclass or an instance.
	ErrCodeClassInUse ClassErrorCode = "CLASS_IN_USE"

	// ErrCodeSystemClass indicates an attempt to change a built-in class.
	ErrCodeSystemClass ClassErrorCode = "SYSTEM_CLASS"

	// ErrCodeInvalidInstance indicates an instance that cannot be created.
	ErrCodeInvalidInstance ClassErrorCode = "INVALID_INSTANCE"
)

// Error implements the error interface.
func (e *ClassError) Error() string {
	return fmt.Sprintf("%s: %s (class=%s)", e.Code, e.Message, e.Class)
}

// IsClassInUse returns true if the error refused a removal because the
// class is still referenced.
func IsClassInUse(err error) bool {
	var ce *ClassError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeClassInUse
	}
	return false
}

// IsUnknownClass returns true if the error is an unknown class error.
func IsUnknownClass(err error) bool {
	var ce *ClassError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeUnknownClass
	}
	return false
}
