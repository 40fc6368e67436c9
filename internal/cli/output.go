package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/inventory"
	"github.com/signalsfoundry/sdh-provisioner/internal/sdh"
	"github.com/signalsfoundry/sdh-provisioner/internal/wizard"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation was rejected (bad selection, link in use, ...)
	ExitCommandError = 2 // Bad arguments or the server could not be reached
)

// Error codes reported in JSON output.
const (
	ErrCodeGeneric    = "E001"
	ErrCodeArguments  = "E002"
	ErrCodeConnect    = "E003"
	ErrCodeNotFound   = "E004"
	ErrCodeAllocation = "E005"
	ErrCodeInUse      = "E006"
	ErrCodeValidation = "E007"
)

// errConnect marks failures to reach the server.
var errConnect = errors.New("cannot reach sdh-server")

// ExitError carries the exit code a command failure should produce.
type ExitError struct {
	Code    int    // Exit code (ExitFailure or ExitCommandError)
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

// textWriter is implemented by results with a custom text rendering.
type textWriter interface {
	WriteText(w io.Writer)
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
	Status string    `json:"status"`         // "ok" or "error"
	Data   any       `json:"data,omitempty"` // success payload
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	if tw, ok := data.(textWriter); ok {
		tw.WriteText(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Fail reports err in the configured format and returns it wrapped with
// an exit code and its error code.
func (f *OutputFormatter) Fail(exitCode int, message string, err error) error {
	code := errorCode(err)
	if f.Format == "json" {
		if encErr := json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error()},
		}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s: %v\n", code, message, err)
	}
	return WrapExitError(exitCode, fmt.Sprintf("[%s] %s", code, message), err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, errConnect), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeConnect
	case errors.Is(err, inventory.ErrObjectNotFound), errors.Is(err, inventory.ErrClassNotFound):
		return ErrCodeNotFound
	case errors.Is(err, core.ErrInvalidPosition),
		errors.Is(err, core.ErrNotEnoughPositions),
		errors.Is(err, core.ErrPositionInUse),
		errors.Is(err, core.ErrCorruptStructure):
		return ErrCodeAllocation
	case errors.Is(err, sdh.ErrLinkInUse), errors.Is(err, sdh.ErrPortInUse):
		return ErrCodeInUse
	case errors.Is(err, wizard.ErrValidation), errors.Is(err, sdh.ErrInvalidRequest):
		return ErrCodeValidation
	default:
		return ErrCodeGeneric
	}
}
