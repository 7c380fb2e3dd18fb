package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is a machine-readable code carried alongside the human message so
// clients can branch on the failure without parsing text.
type ErrorCode string

const (
	CodeDuplicateSKU       ErrorCode = "DuplicateSKU"
	CodeDuplicateSlug      ErrorCode = "DuplicateSlug"
	CodeInvalidPrice       ErrorCode = "InvalidPrice"
	CodeInvalidMultiplier  ErrorCode = "InvalidMultiplier"
	CodeInvalidParent      ErrorCode = "InvalidParent"
	CodeInvalidCategory    ErrorCode = "InvalidCategory"
	CodeInactiveProduct    ErrorCode = "InactiveProduct"
	CodeMissingDescription ErrorCode = "MissingDescription"
	CodeNullField          ErrorCode = "NullField"
	CodeEmptyOrder         ErrorCode = "EmptyOrder"
	CodeProductInUse       ErrorCode = "ProductInUse"
)

// NotFoundError means the referenced entity does not exist. Maps to 404.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError means the operation would violate a uniqueness or reference
// constraint. Maps to 409.
type ConflictError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ValidationError means a business rule was violated. Maps to 422. This is
// distinct from structural validation at the schema layer, which never
// reaches the service.
type ValidationError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
