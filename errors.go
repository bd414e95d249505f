// Package netstack provides the core of a userspace network stack: a
// multi-threaded engine that receives raw Ethernet frames from a device
// abstraction, demultiplexes and processes them up through ARP, IPv4/IPv6,
// ICMP, UDP, and TCP, and emits reply frames back through the device.
package netstack

import "github.com/ehrlich-b/gonetstack/internal/errs"

// Error is the structured error type produced by every layer of the
// engine. See internal/errs for the implementation shared with the
// internal packages.
type Error = errs.Error

// ErrorCode categorizes an Error.
type ErrorCode = errs.ErrorCode

const (
	ErrCodeWrongField     = errs.ErrCodeWrongField
	ErrCodeWrongChecksum  = errs.ErrCodeWrongChecksum
	ErrCodeWrongIPAddress = errs.ErrCodeWrongIPAddress
	ErrCodeWrongMAC       = errs.ErrCodeWrongMAC
	ErrCodeWrongProtocol  = errs.ErrCodeWrongProtocol
	ErrCodeNotImplemented = errs.ErrCodeNotImplemented

	ErrCodeQueueFull  = errs.ErrCodeQueueFull
	ErrCodePoolEmpty  = errs.ErrCodePoolEmpty
	ErrCodeInitFailed = errs.ErrCodeInitFailed

	ErrCodeNoMACAddress = errs.ErrCodeNoMACAddress
	ErrCodeSendFailed   = errs.ErrCodeSendFailed

	ErrCodeDuplicateSeg = errs.ErrCodeDuplicateSeg

	ErrCodeGiveUp = errs.ErrCodeGiveUp
)

// NewError creates a new structured error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return errs.New(op, code, msg)
}

// WrapError wraps an existing error with engine context.
func WrapError(op string, inner error) *Error {
	return errs.Wrap(op, inner)
}

// IsCode reports whether err carries the given error category.
func IsCode(err error, code ErrorCode) bool {
	return errs.IsCode(err, code)
}

// Outcome is the dispatch-control result every unmarshal entry point
// returns alongside error, making buffer-ownership transfer explicit: a
// Retained outcome means some async continuation now owns the buffer and
// the caller must not release it.
type Outcome = errs.Outcome

const (
	OutcomeConsumed = errs.OutcomeConsumed
	OutcomeRetained = errs.OutcomeRetained
	OutcomeDropped  = errs.OutcomeDropped
)
