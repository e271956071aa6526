package catalog

import (
	"errors"
	"fmt"

	"varman/internal/store"
	"varman/internal/validate"
)

// Error codes surfaced by direct catalog operations.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeIntegrity        = "INTEGRITY_VIOLATION"
)

type AppError struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Details []validate.Issue `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

func NotFoundError(kind, name string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %q not found", kind, name),
	}
}

func ConflictError(kind, name string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: fmt.Sprintf("%s %q already exists", kind, name),
	}
}

func IntegrityError(msg string) *AppError {
	return &AppError{Code: CodeIntegrity, Message: msg}
}

func ValidationError(issues []validate.Issue) *AppError {
	return &AppError{
		Code:    CodeValidationFailed,
		Message: "validation failed",
		Details: issues,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
