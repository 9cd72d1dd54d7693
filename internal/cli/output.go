package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/qgraph/internal/engine"
	"github.com/roach88/qgraph/internal/schema"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Request failed, scenarios failed, schema invalid
	ExitCommandError = 2 // Command error (invalid paths, unreadable files, etc.)
)

// CLI error codes. Request failures reported by the engine keep their
// P-code instead.
const (
	ErrCodeGeneric  = "E001"
	ErrCodeSchema   = "E010" // Schema failed to compile
	ErrCodeRequest  = "E020" // Request document failed to parse
	ErrCodeDatabase = "E030" // Database could not be opened or bootstrapped
	ErrCodeScenario = "E040" // Scenario file failed to load
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status    string    `json:"status"`               // "ok" or "error"
	Data      any       `json:"data,omitempty"`       // success payload
	Error     *CLIError `json:"error,omitempty"`      // error details
	RequestID string    `json:"request_id,omitempty"` // engine request id, when one was assigned
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "P2002", "E010", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format. In text
// mode strings and Stringers print as they are; anything else prints as
// indented JSON.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	switch v := data.(type) {
	case string:
		fmt.Fprintln(f.Writer, v)
		return nil
	case fmt.Stringer:
		fmt.Fprintln(f.Writer, v.String())
		return nil
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(f.Writer, string(out))
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	return f.write(CLIError{Code: code, Message: message, Details: details}, "")
}

// Fail reports err with the code and details describe finds for it.
func (f *OutputFormatter) Fail(err error) error {
	ce := describe(err)
	var requestID string
	if ee, ok := engine.AsError(err); ok {
		requestID = ee.RequestID
	}
	return f.write(ce, requestID)
}

func (f *OutputFormatter) write(ce CLIError, requestID string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:    "error",
			Error:     &ce,
			RequestID: requestID,
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", ce.Code, ce.Message)
	if f.Verbose && ce.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", ce.Details)
	}
	if f.Verbose && requestID != "" {
		fmt.Fprintf(f.Writer, "Request: %s\n", requestID)
	}
	return nil
}

// describe maps an error to its CLI error code, message and details.
func describe(err error) CLIError {
	if ee, ok := engine.AsError(err); ok {
		ce := CLIError{Code: string(ee.Code), Message: ee.Message}
		if len(ee.Meta) > 0 {
			ce.Details = ee.Meta
		}
		if ee.BatchIndex >= 0 {
			ce.Message = fmt.Sprintf("%s (batch item %d)", ee.Message, ee.BatchIndex)
		}
		return ce
	}
	var loadErr *schema.LoadError
	if errors.As(err, &loadErr) {
		return CLIError{Code: loadErr.Code, Message: loadErr.Message}
	}
	var compileErr *schema.CompileError
	if errors.As(err, &compileErr) {
		ce := CLIError{Code: ErrCodeSchema, Message: compileErr.Error()}
		if compileErr.Pos.IsValid() {
			ce.Details = map[string]any{
				"field": compileErr.Field,
				"file":  compileErr.Pos.Filename(),
				"line":  compileErr.Pos.Line(),
			}
		}
		return ce
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err != nil {
		ce := describe(exitErr.Err)
		if ce.Code == ErrCodeGeneric {
			ce.Message = exitErr.Error()
		}
		return ce
	}
	return CLIError{Code: ErrCodeGeneric, Message: err.Error()}
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func newFormatter(opts *RootOptions, w, errW io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    w,
		ErrWriter: errW,
		Verbose:   opts.Verbose,
	}
}
