package cmd

import "errors"

// Exit codes for testclient CLI
const (
	// ExitSuccess indicates the command completed
	ExitSuccess = 0

	// ExitCheckFailure indicates a --json-path or --schema check failed
	ExitCheckFailure = 1

	// ExitParseError indicates a fixture file could not be parsed
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode returns the exit code for err, defaulting to ExitCheckFailure.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return ExitCheckFailure
}
