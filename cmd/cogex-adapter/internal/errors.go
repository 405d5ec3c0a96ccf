package internal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// Exit code constants for the CLI
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitError indicates a general error
	ExitError = 1
	// ExitNotFound indicates the query or entity does not exist
	ExitNotFound = 2
	// ExitTimeout indicates the operation timed out
	ExitTimeout = 3
	// ExitCancelled indicates the operation was cancelled
	ExitCancelled = 4
	// ExitInvalidQuery indicates the request was rejected before reaching a backend
	ExitInvalidQuery = 5
	// ExitConfigError indicates a configuration error
	ExitConfigError = 10
	// ExitBackendError indicates every backend failed or none was available
	ExitBackendError = 11
)

// CLIError represents a CLI-specific error with an exit code
type CLIError struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// WrapError creates a new CLIError wrapping an existing error
func WrapError(code int, message string, err error) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewCLIError creates a new CLIError with the given code and message
func NewCLIError(code int, message string) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
	}
}

// HandleError prints err to the command's error output and returns the exit
// code for it.
func HandleError(cmd *cobra.Command, err error) int {
	if err == nil {
		return ExitSuccess
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		cmd.PrintErrln("Error:", cliErr.Message)
		if cliErr.Cause != nil && verboseRequested(cmd) {
			cmd.PrintErrln("Cause:", cliErr.Cause)
		}
		return cliErr.Code
	}

	var typed *types.Error
	if errors.As(err, &typed) {
		cmd.PrintErrln("Error:", typed.Error())
		return ExitCodeFor(typed)
	}

	if errors.Is(err, context.Canceled) {
		cmd.PrintErrln("Operation cancelled")
		return ExitCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		cmd.PrintErrln("Operation timed out")
		return ExitTimeout
	}

	cmd.PrintErrln("Error:", err)
	return ExitError
}

// ExitCodeFor maps an adapter error to an exit code.
func ExitCodeFor(err *types.Error) int {
	switch err.Code {
	case types.UNKNOWN_QUERY, types.ENTITY_NOT_FOUND:
		return ExitNotFound
	case types.INVALID_QUERY, types.QUERY_REJECTED:
		return ExitInvalidQuery
	case types.QUERY_TIMEOUT, types.BACKEND_TIMEOUT:
		return ExitTimeout
	case types.NO_BACKEND_AVAILABLE, types.QUERY_FAILED, types.ADAPTER_CLOSED:
		return ExitBackendError
	}
	if err.Kind == types.KindConfig {
		return ExitConfigError
	}
	return ExitError
}

func verboseRequested(cmd *cobra.Command) bool {
	f := cmd.Flag("verbose")
	return f != nil && f.Changed
}

// IsVerbose checks if verbose mode is enabled via environment variable or flag.
// It is used during panic recovery, before flags are parsed.
func IsVerbose() bool {
	if os.Getenv("COGEX_VERBOSE") != "" {
		return true
	}
	for _, arg := range os.Args {
		if arg == "-v" || arg == "--verbose" {
			return true
		}
	}
	return false
}
