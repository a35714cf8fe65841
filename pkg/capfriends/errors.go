package capfriends

import (
	"errors"
	"fmt"
)

// ErrorCode defines error classification codes for structured error handling.
type ErrorCode string

// Error codes for different error categories.
const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidAmount      ErrorCode = "INVALID_AMOUNT"
	ErrCodeInsufficientUnits  ErrorCode = "INSUFFICIENT_UNITS"
	ErrCodeNoSelfSwitch       ErrorCode = "NO_SELF_SWITCH"
	ErrCodeAllocationExceeded ErrorCode = "ALLOCATION_EXCEEDED"

	ErrCodePortfolioNotFound   ErrorCode = "PORTFOLIO_NOT_FOUND"
	ErrCodeFundNotFound        ErrorCode = "FUND_NOT_FOUND"
	ErrCodeTransactionNotFound ErrorCode = "TRANSACTION_NOT_FOUND"

	ErrCodeFundNotHeld ErrorCode = "FUND_NOT_HELD"

	ErrCodePriceUnavailable  ErrorCode = "PRICE_UNAVAILABLE"
	ErrCodeLedgerWriteFailed ErrorCode = "LEDGER_WRITE_FAILED"

	ErrCodeDuplicate ErrorCode = "DUPLICATE"
	ErrCodeDatabase  ErrorCode = "DATABASE_ERROR"
	ErrCodeInternal  ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory groups error codes by how callers should react to them.
type ErrorCategory string

const (
	CategoryValidation  ErrorCategory = "validation"
	CategoryNotFound    ErrorCategory = "not_found"
	CategoryConsistency ErrorCategory = "consistency"
	CategoryDependency  ErrorCategory = "dependency"
	CategoryInternal    ErrorCategory = "internal"
)

// Category returns the category a code belongs to.
func (c ErrorCode) Category() ErrorCategory {
	switch c {
	case ErrCodeInvalidInput, ErrCodeInvalidAmount, ErrCodeInsufficientUnits,
		ErrCodeNoSelfSwitch, ErrCodeAllocationExceeded, ErrCodeDuplicate:
		return CategoryValidation
	case ErrCodePortfolioNotFound, ErrCodeFundNotFound, ErrCodeTransactionNotFound:
		return CategoryNotFound
	case ErrCodeFundNotHeld:
		return CategoryConsistency
	case ErrCodePriceUnavailable, ErrCodeLedgerWriteFailed, ErrCodeDatabase:
		return CategoryDependency
	default:
		return CategoryInternal
	}
}

// Error represents a structured error with classification code.
// Details carries the numbers behind a rejection (for example the current
// allocation total and the requested delta) so callers need not re-derive them.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an existing error with classification code and additional context.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithDetail attaches a structured detail and returns the same error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error matches a specific error code.
func IsErrorCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ErrorCategoryOf returns the category of err, or CategoryInternal for
// errors that carry no code.
func ErrorCategoryOf(err error) ErrorCategory {
	var e *Error
	if errors.As(err, &e) {
		return e.Code.Category()
	}
	return CategoryInternal
}
