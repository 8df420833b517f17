package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Run lifecycle errors
	ErrRunExists   = &Error{Code: "RUN_EXISTS", Message: "run already exists"}
	ErrRunNotFound = &Error{Code: "RUN_NOT_FOUND", Message: "run not found"}
	ErrRunTerminal = &Error{Code: "RUN_TERMINAL", Message: "run already reached a terminal state"}
	ErrRunActive   = &Error{Code: "RUN_ACTIVE", Message: "run has not finished"}

	// Account errors
	ErrTradeNotFound      = &Error{Code: "TRADE_NOT_FOUND", Message: "trade not found"}
	ErrMissingParams      = &Error{Code: "MISSING_PARAMS", Message: "required parameters missing"}
	ErrInvalidStopLoss    = &Error{Code: "INVALID_STOP_LOSS", Message: "stop loss on wrong side of entry"}
	ErrInsufficientShares = &Error{Code: "INSUFFICIENT_SHARES", Message: "not enough shares remaining"}
	ErrInvalidShares      = &Error{Code: "INVALID_SHARES", Message: "share count must be positive"}
	ErrPositionExists     = &Error{Code: "POSITION_EXISTS", Message: "conflicting open position for symbol"}
	ErrUntrackedSymbol    = &Error{Code: "UNTRACKED_SYMBOL", Message: "symbol not tracked by this run"}

	// Exit strategy errors
	ErrInvalidExitStrategy = &Error{Code: "INVALID_EXIT_STRATEGY", Message: "exit strategy configuration invalid"}

	// Data errors
	ErrNoData       = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrMalformedBar = &Error{Code: "MALFORMED_BAR", Message: "bar failed validation"}
	ErrDataSource   = &Error{Code: "DATA_SOURCE_FAILED", Message: "data source failure"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
