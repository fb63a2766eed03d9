// Package workflow holds the approval rules of the construction tracker:
// role policy, the daily report and SWO state machines, progress
// aggregation, notification derivation and visibility. Everything here is a
// pure function over entity snapshots and never touches a store.
package workflow

import (
	"errors"
	"fmt"
)

// 错误定义
var (
	ErrPendingApproval   = errors.New("account is pending approval")
	ErrAccountRejected   = errors.New("account has been rejected")
	ErrRecordNotFound    = errors.New("record not found")
	ErrForbidden         = errors.New("permission denied")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrProjectLocked     = errors.New("project is locked")
	ErrConflict          = errors.New("record already exists")
)

// ValidationError is a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid builds a *ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StoreWriteError wraps a failed write against the backing store.
type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write %s: %v", e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

// WriteFailed wraps err as a *StoreWriteError unless it is nil.
func WriteFailed(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreWriteError{Op: op, Err: err}
}

func invalidTransition(what, from string) error {
	return fmt.Errorf("%w: %s from %q", ErrInvalidTransition, what, from)
}

func forbidden(role string, action Action) error {
	return fmt.Errorf("%w: role %q cannot %s", ErrForbidden, role, action)
}
