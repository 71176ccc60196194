// Package apperr defines the error kinds shared across usecases. Callers
// classify failures with errors.Is; the concrete message carries the detail.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrDuplicate              = errors.New("already exists")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrAlreadyActive          = errors.New("already active")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrValidation             = errors.New("validation failed")
)

func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func Duplicatef(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrDuplicate)...)
}

func InsufficientStockf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInsufficientStock)...)
}

func InvalidTransitionf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidStateTransition)...)
}

func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}
