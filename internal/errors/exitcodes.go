package errors

import stderrors "errors"

const (
	// ExitCodeSuccess indicates successful execution
	ExitCodeSuccess = 0

	// ExitCodeRuntime indicates a general runtime error
	ExitCodeRuntime = 1

	// ExitCodeValidation indicates a usage/validation error (follows bash convention)
	ExitCodeValidation = 2

	// ExitCodeAuth indicates an authentication failure
	ExitCodeAuth = 3

	// ExitCodeAPI indicates a provider API error
	ExitCodeAPI = 4

	// ExitCodeNetwork indicates a network connectivity error
	ExitCodeNetwork = 5

	// ExitCodeConfig indicates a configuration error
	ExitCodeConfig = 6

	// ExitCodeGeneration indicates a generation job that failed or produced no output
	ExitCodeGeneration = 7

	// ExitCodeTimeout indicates a generation job that did not finish in time
	ExitCodeTimeout = 8

	// ExitCodeCanceled follows the shell convention for SIGINT
	ExitCodeCanceled = 130
)

// ExitCode returns the appropriate exit code for an error type
func ExitCode(t ErrorType) int {
	switch t {
	case ErrorTypeValidation:
		return ExitCodeValidation
	case ErrorTypeAuth:
		return ExitCodeAuth
	case ErrorTypeAPI, ErrorTypeSubmission:
		return ExitCodeAPI
	case ErrorTypeNetwork:
		return ExitCodeNetwork
	case ErrorTypeConfig, ErrorTypeModelConfig:
		return ExitCodeConfig
	case ErrorTypeOutputFormat, ErrorTypePredictionFailed, ErrorTypeStoryboardFormat:
		return ExitCodeGeneration
	case ErrorTypeTimeout:
		return ExitCodeTimeout
	case ErrorTypeCancellation:
		return ExitCodeCanceled
	default:
		return ExitCodeRuntime
	}
}

// ExitCodeFromError extracts the exit code from an error
// Returns ExitCodeRuntime for non-CLIError types
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		return ExitCode(cliErr.Type)
	}

	return ExitCodeRuntime
}
