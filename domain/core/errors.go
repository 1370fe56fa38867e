package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrColumnNotFound = fmt.Errorf("%w: column", ErrNotFound)

	// Precondition errors
	ErrInvalidInput     = errors.New("invalid input")
	ErrNilDataset       = fmt.Errorf("%w: dataset is nil", ErrInvalidInput)
	ErrInvalidRatio     = fmt.Errorf("%w: sample ratio must be in (0, 1]", ErrInvalidInput)
	ErrUnsupportedRule  = errors.New("rule type not supported")
	ErrRuleNotApproved  = errors.New("rule requires human approval")
	ErrInvalidCondition = errors.New("invalid state transition")
)

// NewColumnNotFoundError reports a column missing from a dataset
func NewColumnNotFoundError(column string) error {
	return fmt.Errorf("%w: %s", ErrColumnNotFound, column)
}

// NewValidationError reports an invalid argument
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, reason)
}

// NewUnsupportedRuleError reports a rule type without an application strategy
func NewUnsupportedRuleError(ruleType string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedRule, ruleType)
}

// IsValidationError reports whether err is a precondition violation
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
