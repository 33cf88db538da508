package workererrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestExtractUserFriendlyError(t *testing.T) {
	tests := []struct {
		name     string
		input    error
		expected string
	}{
		{
			name:     "Connection refused",
			input:    errors.New("dial tcp 127.0.0.1:8100: connect: connection refused"),
			expected: "PRINTER: Connection refused - is the printer or emulator running?",
		},
		{
			name:     "Timeout",
			input:    errors.New("write tcp 127.0.0.1:50000->127.0.0.1:8100: i/o timeout"),
			expected: "PRINTER: Timed out talking to the printer",
		},
		{
			name:     "Context deadline",
			input:    fmt.Errorf("raw print: %w", errors.New("context deadline exceeded")),
			expected: "PRINTER: Timed out talking to the printer",
		},
		{
			name:     "OpenPrinter failure",
			input:    errors.New("OpenPrinter: The printer name is invalid."),
			expected: "PRINTER: Cannot open printer - check if it is installed",
		},
		{
			name:     "Spooler missing",
			input:    errors.New(`exec: "lp": executable file not found in $PATH`),
			expected: "SPOOLER: Print spooler tools are not installed",
		},
		{
			name:     "Fallback with prefix removal",
			input:    errors.New("exec: something odd"),
			expected: "ERROR: something odd",
		},
		{
			name:     "Fallback",
			input:    errors.New("some random error"),
			expected: "ERROR: some random error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractUserFriendlyError(tt.input)
			if got != tt.expected {
				t.Errorf("ExtractUserFriendlyError() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   Code
		wantStatus int
	}{
		{"nil", nil, "", http.StatusOK},
		{"validation", New(CodeValidation, "printer name is required"), CodeValidation, http.StatusBadRequest},
		{"conflict", New(CodeConflict, "busy"), CodeConflict, http.StatusConflict},
		{"wrapped transport", fmt.Errorf("job 1: %w", Wrap(CodeTransport, errors.New("boom"), "send failed")), CodeTransport, http.StatusInternalServerError},
		{"plain", errors.New("plain"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.wantCode {
				t.Errorf("CodeOf() = %q; want %q", got, tt.wantCode)
			}
			if got := HTTPStatus(tt.err); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %d; want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	err := Wrap(CodeTransport, errors.New("dial tcp 127.0.0.1:8100: connect: connection refused"), "thermal job failed")
	want := "thermal job failed: PRINTER: Connection refused - is the printer or emulator running?"
	if got := UserMessage(err); got != want {
		t.Errorf("UserMessage() = %q; want %q", got, want)
	}
	if got := UserMessage(New(CodeValidation, "missing %s", "data")); got != "missing data" {
		t.Errorf("UserMessage() = %q", got)
	}
	if !errors.Is(err, err.Cause) {
		t.Errorf("Unwrap does not expose the cause")
	}
}
