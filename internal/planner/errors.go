package planner

import (
	"errors"
	"fmt"
)

// EvalError represents an error detected while running a pipeline through
// the reference evaluator.
//
// Evaluation errors include:
//   - Unknown pipeline: the plan holds no pipeline of that name
//   - Bad input: a parameter is missing, unknown, malformed, or out of
//     its declared range
//   - Divide by zero: a div step's runtime divisor is zero
//   - Negative narrow: to_unsigned sees a negative value
//
// EvalError includes structured fields for diagnostics and classification.
type EvalError struct {
	// Code identifies the error category.
	Code EvalErrorCode

	// Message is a human-readable description.
	Message string

	// Pipeline identifies the affected pipeline.
	Pipeline string

	// Name identifies the parameter or step, when one is at fault.
	Name string

	cause error
}

// EvalErrorCode categorizes evaluation errors.
type EvalErrorCode string

const (
	// ErrCodeUnknownPipeline indicates the named pipeline doesn't exist.
	ErrCodeUnknownPipeline EvalErrorCode = "UNKNOWN_PIPELINE"

	// ErrCodeBadInput indicates a parameter binding problem.
	ErrCodeBadInput EvalErrorCode = "BAD_INPUT"

	// ErrCodeDivideByZero indicates a zero runtime divisor.
	ErrCodeDivideByZero EvalErrorCode = "DIVIDE_BY_ZERO"

	// ErrCodeNegativeNarrow indicates to_unsigned saw a negative value.
	ErrCodeNegativeNarrow EvalErrorCode = "NEGATIVE_NARROW"
)

// Error implements the error interface.
func (e *EvalError) Error() string {
	if e.Pipeline != "" && e.Name != "" {
		return fmt.Sprintf("%s: %s (pipeline=%s, at=%s)", e.Code, e.Message, e.Pipeline, e.Name)
	}
	if e.Pipeline != "" {
		return fmt.Sprintf("%s: %s (pipeline=%s)", e.Code, e.Message, e.Pipeline)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, letting errors.Is reach sentinels
// such as fixed.ErrOutOfRange.
func (e *EvalError) Unwrap() error { return e.cause }

// IsBadInput returns true if the error is a parameter binding error.
// Uses errors.As to handle wrapped errors.
func IsBadInput(err error) bool {
	var ee *EvalError
	return errors.As(err, &ee) && ee.Code == ErrCodeBadInput
}

// IsDivideByZero returns true if the error is a runtime zero divisor.
// Uses errors.As to handle wrapped errors.
func IsDivideByZero(err error) bool {
	var ee *EvalError
	return errors.As(err, &ee) && ee.Code == ErrCodeDivideByZero
}

// IsNegativeNarrow returns true if the error is a failed to_unsigned.
// Uses errors.As to handle wrapped errors.
func IsNegativeNarrow(err error) bool {
	var ee *EvalError
	return errors.As(err, &ee) && ee.Code == ErrCodeNegativeNarrow
}

func newUnknownPipeline(pipeline string) *EvalError {
	return &EvalError{
		Code:     ErrCodeUnknownPipeline,
		Message:  "pipeline not found in plan",
		Pipeline: pipeline,
	}
}

func newBadInput(pipeline, name, message string, cause error) *EvalError {
	return &EvalError{
		Code:     ErrCodeBadInput,
		Message:  message,
		Pipeline: pipeline,
		Name:     name,
		cause:    cause,
	}
}

func newDivideByZero(pipeline, step string, cause error) *EvalError {
	return &EvalError{
		Code:     ErrCodeDivideByZero,
		Message:  "divisor is zero",
		Pipeline: pipeline,
		Name:     step,
		cause:    cause,
	}
}

func newNegativeNarrow(pipeline, step string, cause error) *EvalError {
	return &EvalError{
		Code:     ErrCodeNegativeNarrow,
		Message:  "to_unsigned of a negative value",
		Pipeline: pipeline,
		Name:     step,
		cause:    cause,
	}
}
