package errcode

import (
	"errors"

	"envnode-go/drivers/hdc2080"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK                Code = "ok"
	Busy              Code = "busy"
	Unsupported       Code = "unsupported"
	InvalidParams     Code = "invalid_params"
	InvalidPayload    Code = "invalid_payload"
	UnknownCapability Code = "unknown_capability"
	HALNotReady       Code = "hal_not_ready"

	UnknownBus Code = "unknown_bus"
	UnknownPin Code = "unknown_pin"
	I2CError   Code = "i2c_error"
	NotReady   Code = "not_ready"
	Timeout    Code = "timeout"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// MapDriverErr maps low-level driver errors to a Code. Transport wrappers
// and the driver's validation sentinel are kept distinct so callers can
// tell a flaky bus from a bad request.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	switch {
	case errors.Is(err, hdc2080.ErrInvalidInput):
		return InvalidParams
	case errors.Is(err, hdc2080.ErrNotReady):
		return NotReady
	case errors.Is(err, hdc2080.ErrTimeout):
		return Timeout
	}
	var be hdc2080.BusError[error]
	if errors.As(err, &be) {
		return I2CError
	}
	return Error
}
