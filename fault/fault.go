// Package fault defines the structured error shared by both ends of the
// wire.
//
// Every failure, whether raised locally or reconstructed from a fault
// message, is an *Error carrying a numeric code, a human-readable message,
// and optional structured data. Callers branch on the code, never on the
// message text, so the enumeration below is the contract: both peers must
// agree on it and no other error shape ever crosses the wire.
package fault

import (
	"errors"
	"fmt"
)

// Error codes, grouped by range. The enumeration is open-ended; new codes
// must stay inside their range so peers can classify codes they do not know.
const (
	// 1xx request faults: the operation was understood but cannot run.
	ErrInvalidArgument = 101 // malformed or missing argument
	ErrNoSupport       = 102 // operation not implemented by this plugin/system
	ErrTimeout         = 103 // reply did not arrive within the configured bound
	ErrBusy            = 104 // plugin refused the request under load

	// 2xx lookup faults: a named resource is absent or conflicting.
	ErrNotFound    = 201
	ErrExists      = 202
	ErrJobNotFound = 203

	// 3xx transport faults: the connection itself failed. These are
	// connection-fatal; the caller must close and reconnect.
	ErrTransport       = 301
	ErrTransportEOF    = 302
	ErrTransportClosed = 303

	// 4xx plugin-internal faults.
	ErrPluginFailure = 401
)

// Error is the single discriminated failure type. The json tags are the wire
// form of a fault's "error" member; Data is always present on the wire, even
// when null, matching the message shape in both directions.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("fault %d: %s", e.Code, e.Message)
}

// New returns an *Error with the given code and message.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf is New with formatting.
func Newf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithData returns an *Error carrying machine-actionable detail.
func WithData(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// NoSupport is the uniform failure for every capability-gated operation a
// plugin does not implement.
func NoSupport() *Error {
	return New(ErrNoSupport, "operation not supported")
}

// FromError coerces err into an *Error. Structured faults pass through
// unchanged; anything else is wrapped as a plugin-internal failure so that
// nothing unstructured reaches the dispatch boundary.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return New(ErrPluginFailure, err.Error())
}

// Code extracts the numeric code from err, or 0 if err is nil. Unstructured
// errors report ErrPluginFailure.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ErrPluginFailure
}

// IsNoSupport reports whether err is the uniform "not implemented" fault,
// distinguishing it from "operation attempted and failed".
func IsNoSupport(err error) bool {
	return Code(err) == ErrNoSupport
}
