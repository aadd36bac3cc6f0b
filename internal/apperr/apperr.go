// Package apperr defines the server's error taxonomy (spec §7) as a single
// typed value instead of string-sniffed errors, so the request surface can
// map a failure to a transport status code without inspecting messages.
package apperr

import "fmt"

// Code is one of the error classes from the design's error taxonomy.
type Code string

const (
	InvalidArg   Code = "InvalidArg"
	NameReserved Code = "NameReserved"
	NameTaken    Code = "NameTaken"
	Unauthorized Code = "Unauthorized"
	Forbidden    Code = "Forbidden"
	NotFound     Code = "NotFound"
	Conflict     Code = "Conflict"
	IllegalMove  Code = "IllegalMove"
	Internal     Code = "Internal"
)

// Error is the typed error returned by every mutating handler.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the Code from err, defaulting to Internal for untyped
// errors so an invariant violation never escapes as a raw Go error.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return Internal
}
