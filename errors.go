package bdev

import (
	"errors"
	"fmt"
)

// ErrorCode is a high-level error category every structured Error carries,
// stable across module implementations so callers can branch on IsCode
// instead of string-matching messages.
type ErrorCode string

const (
	ErrCodeNotFound        ErrorCode = "bdev not found"
	ErrCodeExists          ErrorCode = "bdev already exists"
	ErrCodeBusy            ErrorCode = "bdev busy"
	ErrCodeInvalidParams   ErrorCode = "invalid parameters"
	ErrCodeNoMemory        ErrorCode = "no memory"
	ErrCodeIOFailure       ErrorCode = "I/O failure"
	ErrCodeAborted         ErrorCode = "I/O aborted"
	ErrCodeTimeout         ErrorCode = "timeout"
	ErrCodeClaimConflict   ErrorCode = "claim conflict"
	ErrCodeRangeLocked     ErrorCode = "LBA range locked"
	ErrCodeUnsupported     ErrorCode = "operation not supported by module"
	ErrCodeResetInProgress ErrorCode = "reset in progress"
	ErrCodeNotConnected    ErrorCode = "controller not connected"
)

// Error is the structured error type returned throughout the bdev core: an
// operation name, the bdev it concerns (if any), the channel/thread it
// concerns (if any), a stable Code, a human message, and an optionally
// wrapped inner error.
type Error struct {
	Op      string
	Bdev    string
	Channel string
	Code    ErrorCode
	Msg     string
	Inner   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Bdev != "" {
		parts = append(parts, fmt.Sprintf("bdev=%s", e.Bdev))
	}
	if e.Channel != "" {
		parts = append(parts, fmt.Sprintf("channel=%s", e.Channel))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("bdev: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("bdev: %s", msg)
}

// Unwrap returns the wrapped error, supporting errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is comparison against another *Error by Code, or
// against a code wrapped as codeError.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if code, ok := target.(codeError); ok {
		return e.Code == ErrorCode(code)
	}
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// codeError lets a code be compared via errors.Is(err, codeError(SomeCode)).
// ErrorCode itself does not implement error.
type codeError ErrorCode

func (c codeError) Error() string { return string(c) }

// NewError creates a bare structured error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewBdevError creates a structured error scoped to a bdev.
func NewBdevError(op, bdev string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Bdev: bdev, Code: code, Msg: msg}
}

// NewChannelError creates a structured error scoped to a bdev and channel.
func NewChannelError(op, bdev, channel string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Bdev: bdev, Channel: channel, Code: code, Msg: msg}
}

// WrapError wraps inner with op context, preserving Code/Bdev/Channel if
// inner is already a structured *Error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var be *Error
	if errors.As(inner, &be) {
		return &Error{
			Op:      op,
			Bdev:    be.Bdev,
			Channel: be.Channel,
			Code:    be.Code,
			Msg:     be.Msg,
			Inner:   be.Inner,
		}
	}
	return &Error{Op: op, Code: ErrCodeIOFailure, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a structured Error carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}
