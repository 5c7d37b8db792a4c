// Package services provides standardized error types for service layer
// operations.
package services

import (
	"errors"
	"fmt"

	"github.com/datapilot/datapilot/pkg/orchestrator"
	"github.com/datapilot/datapilot/pkg/rollback"
	"github.com/datapilot/datapilot/pkg/snapshot"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")
	ErrPlanNil        = errors.New("plan cannot be nil")
	ErrEmptyApprover  = errors.New("approver cannot be empty")
	ErrEmptySnapshot  = errors.New("snapshot ID cannot be empty")
	ErrEmptyTarget    = errors.New("target path cannot be empty")

	// Business logic conflicts (409 Conflict).
	ErrRunNotActive      = orchestrator.ErrRunNotActive
	ErrInvalidTransition = rollback.ErrInvalidTransition
	ErrTargetConflict    = snapshot.ErrTargetConflict
	ErrInvalidPlan       = orchestrator.ErrInvalidPlan
	ErrDependencyUnmet   = orchestrator.ErrDependencyUnmet
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should
// return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrPlanNil) ||
		errors.Is(err, ErrEmptyApprover) ||
		errors.Is(err, ErrEmptySnapshot) ||
		errors.Is(err, ErrEmptyTarget) ||
		errors.Is(err, ErrInvalidPlan)
}

// IsConflictError checks if an error is a business logic conflict that should
// return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrRunNotActive) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrTargetConflict)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
