// Package workererrors defines the error taxonomy shared by the print
// executor, the HTTP front door and the startup arbitration.
package workererrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code classifies a failure.
type Code string

const (
	// CodeValidation marks missing or malformed request fields.
	CodeValidation Code = "VALIDATION"
	// CodeConflict marks a destination that already has a job in flight.
	CodeConflict Code = "CONFLICT"
	// CodeTransport marks delivery failures (TCP, raw print, timeouts).
	CodeTransport Code = "TRANSPORT"
	// CodeStartup marks ports that could not be reclaimed.
	CodeStartup Code = "STARTUP"
	// CodeInternal marks anything unexpected.
	CodeInternal Code = "INTERNAL"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether any error in err's chain carries code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the first *Error in the chain, or
// CodeInternal for uncoded errors and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error to the response status of the front door.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case "":
		return http.StatusOK
	case CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the message of a coded error without its code, or
// the plain error text.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Code == CodeTransport && e.Cause != nil {
			return e.Message + ": " + ExtractUserFriendlyError(e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// ExtractUserFriendlyError turns low-level delivery errors into a short
// message for the front-end.
func ExtractUserFriendlyError(err error) string {
	errStr := err.Error()

	errorMappings := []struct {
		pattern string
		message string
	}{
		{"connection refused", "PRINTER: Connection refused - is the printer or emulator running?"},
		{"no such host", "PRINTER: Unknown host"},
		{"i/o timeout", "PRINTER: Timed out talking to the printer"},
		{"context deadline exceeded", "PRINTER: Timed out talking to the printer"},
		{"broken pipe", "PRINTER: Connection dropped while sending"},
		{"connection reset", "PRINTER: Connection dropped while sending"},
		{"openprinter", "PRINTER: Cannot open printer - check if it is installed"},
		{"unknown printer", "PRINTER: Cannot open printer - check if it is installed"},
		{"executable file not found", "SPOOLER: Print spooler tools are not installed"},
		{"chrome", "RENDER: Headless browser unavailable"},
	}

	lower := strings.ToLower(errStr)
	for _, mapping := range errorMappings {
		if strings.Contains(lower, mapping.pattern) {
			return mapping.message
		}
	}

	return fmt.Sprintf("ERROR: %s", cleanErrorMessage(errStr))
}

// cleanErrorMessage removes verbose prefixes
func cleanErrorMessage(errStr string) string {
	prefixes := []string{
		"dial tcp ",
		"write tcp ",
		"exec: ",
	}
	result := errStr
	for _, prefix := range prefixes {
		result = strings.TrimPrefix(result, prefix)
	}
	return result
}
