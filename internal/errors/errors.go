// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	// Construction errors
	ErrInvalidTicker   = errors.New("invalid ticker")
	ErrInvalidStrike   = errors.New("invalid strike")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrExpiryInPast    = errors.New("expiry is in the past")
	ErrUnknownEnum     = errors.New("unknown enum value")

	// Data errors
	ErrInsufficientHistory = errors.New("insufficient price history")
	ErrDataNotFound        = errors.New("data not found")
	ErrNotPriced           = errors.New("option has not been priced")
	ErrGreeksUnsupported   = errors.New("greeks not supported by pricing method")

	// Configuration errors
	ErrInvalidStrategy = errors.New("invalid strategy configuration")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrDatabaseError   = errors.New("database error")
)

// ValidationError represents a construction-time validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Err:     err,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// StrategyError represents a strategy shape validation error.
type StrategyError struct {
	Strategy string
	Reason   string
	Err      error
}

func (e *StrategyError) Error() string {
	if e.Err != nil && e.Err != ErrInvalidStrategy {
		return fmt.Sprintf("strategy error [%s]: %s: %v", e.Strategy, e.Reason, e.Err)
	}
	return fmt.Sprintf("strategy error [%s]: %s", e.Strategy, e.Reason)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

// NewStrategyError creates a new StrategyError wrapping ErrInvalidStrategy.
func NewStrategyError(strategy, reason string) *StrategyError {
	return &StrategyError{
		Strategy: strategy,
		Reason:   reason,
		Err:      ErrInvalidStrategy,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsConstruction reports whether err is fatal to the object being built.
func IsConstruction(err error) bool {
	return errors.Is(err, ErrInvalidTicker) ||
		errors.Is(err, ErrInvalidStrike) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrExpiryInPast) ||
		errors.Is(err, ErrUnknownEnum)
}
