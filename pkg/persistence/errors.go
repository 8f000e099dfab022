// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrAutomationNotFound indicates an automation was not found by the given identifier.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrTemplateNotFound indicates an email template was not found.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTagNotFound indicates a tag catalog entry was not found.
	ErrTagNotFound = errors.New("tag not found")

	// ErrFunnelNotFound indicates no funnel is attached to the automation.
	ErrFunnelNotFound = errors.New("funnel not found")

	// ErrFunnelStepNotFound indicates a funnel step was not found.
	ErrFunnelStepNotFound = errors.New("funnel step not found")

	// ErrExecutionAlreadyExists indicates an execution with the same
	// unique event id already exists (idempotent enrollment).
	ErrExecutionAlreadyExists = errors.New("execution already exists")
)

// ExecutionError wraps execution-related errors with operation context.
type ExecutionError struct {
	Op          string // Operation being performed (e.g., "GetByID", "SavePointer")
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{
		Op:          op,
		ExecutionID: executionID,
		Err:         err,
	}
}

// AutomationError wraps automation-related errors with operation context.
type AutomationError struct {
	Op           string
	AutomationID string
	Err          error
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("%s operation failed for automation %s: %v", e.Op, e.AutomationID, e.Err)
}

func (e *AutomationError) Unwrap() error {
	return e.Err
}

func (e *AutomationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewAutomationError creates a new automation error with context.
func NewAutomationError(op, automationID string, err error) *AutomationError {
	return &AutomationError{
		Op:           op,
		AutomationID: automationID,
		Err:          err,
	}
}

// IsAutomationNotFound checks if an error indicates an automation was not found.
func IsAutomationNotFound(err error) bool {
	return errors.Is(err, ErrAutomationNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsTemplateNotFound checks if an error indicates a template was not found.
func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

// IsFunnelNotFound checks if an error indicates a funnel was not found.
func IsFunnelNotFound(err error) bool {
	return errors.Is(err, ErrFunnelNotFound)
}
