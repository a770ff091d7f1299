package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// ErrorTypeUnknown represents an unclassified error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeValidation represents argument/flag validation errors
	ErrorTypeValidation
	// ErrorTypeAuth represents authentication/authorization errors
	ErrorTypeAuth
	// ErrorTypeAPI represents provider API errors
	ErrorTypeAPI
	// ErrorTypeNetwork represents network connectivity errors
	ErrorTypeNetwork
	// ErrorTypeRuntime represents general runtime errors
	ErrorTypeRuntime
	// ErrorTypeConfig represents configuration file errors
	ErrorTypeConfig
	// ErrorTypeModelConfig represents a model configuration that cannot be invoked
	ErrorTypeModelConfig
	// ErrorTypeSubmission represents a provider rejecting job creation
	ErrorTypeSubmission
	// ErrorTypeOutputFormat represents a succeeded job with unusable output
	ErrorTypeOutputFormat
	// ErrorTypePredictionFailed represents a provider reported failure or cancellation
	ErrorTypePredictionFailed
	// ErrorTypeCancellation represents a user initiated abort
	ErrorTypeCancellation
	// ErrorTypeTimeout represents a job that did not finish in time
	ErrorTypeTimeout
	// ErrorTypeStoryboardFormat represents an LLM response without a scenes array
	ErrorTypeStoryboardFormat
)

// CLIError wraps errors with type information and context for better UX
type CLIError struct {
	Type    ErrorType
	Err     error
	Context string // Additional context or help text for the user

	// Status is the remote prediction status for prediction failures
	Status string
}

// Error implements the error interface
func (e *CLIError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%v\n%s", e.Err, e.Context)
	}
	return e.Err.Error()
}

// Unwrap implements error unwrapping for Go 1.13+ error chains
func (e *CLIError) Unwrap() error {
	return e.Err
}

// Is matches another *CLIError of the same type, so sentinel-style checks like
// errors.Is(err, &CLIError{Type: ErrorTypeTimeout}) work.
func (e *CLIError) Is(target error) bool {
	t, ok := target.(*CLIError)
	if !ok {
		return false
	}
	return t.Err == nil && t.Type == e.Type
}

// ValidationError creates a validation error (shows usage hints)
func ValidationError(err error, context string) *CLIError {
	return &CLIError{
		Type:    ErrorTypeValidation,
		Err:     err,
		Context: context,
	}
}

// AuthError creates an authentication error
func AuthError(err error) *CLIError {
	return &CLIError{
		Type: ErrorTypeAuth,
		Err:  err,
	}
}

// AuthErrorWithContext creates an authentication error with context
func AuthErrorWithContext(err error, context string) *CLIError {
	return &CLIError{
		Type:    ErrorTypeAuth,
		Err:     err,
		Context: context,
	}
}

// APIError creates an API error
func APIError(err error) *CLIError {
	return &CLIError{
		Type: ErrorTypeAPI,
		Err:  err,
	}
}

// NetworkError creates a network error
func NetworkError(err error) *CLIError {
	return &CLIError{
		Type: ErrorTypeNetwork,
		Err:  err,
	}
}

// RuntimeError creates a runtime error
func RuntimeError(err error) *CLIError {
	return &CLIError{
		Type: ErrorTypeRuntime,
		Err:  err,
	}
}

// ConfigError creates a configuration error
func ConfigError(err error) *CLIError {
	return &CLIError{
		Type: ErrorTypeConfig,
		Err:  err,
	}
}

// ConfigErrorWithContext creates a configuration error with context
func ConfigErrorWithContext(err error, context string) *CLIError {
	return &CLIError{
		Type:    ErrorTypeConfig,
		Err:     err,
		Context: context,
	}
}

// ModelConfigError reports a model configuration missing fields needed to invoke it.
// Not retried.
func ModelConfigError(err error) *CLIError {
	return &CLIError{
		Type: ErrorTypeModelConfig,
		Err:  err,
	}
}

// SubmissionError reports the provider rejecting job creation
func SubmissionError(err error) *CLIError {
	return &CLIError{
		Type: ErrorTypeSubmission,
		Err:  err,
	}
}

// OutputFormatError reports a succeeded job whose output is absent or malformed
func OutputFormatError(err error) *CLIError {
	return &CLIError{
		Type: ErrorTypeOutputFormat,
		Err:  err,
	}
}

// PredictionFailedError reports a job the provider marked failed or canceled
func PredictionFailedError(status string, err error) *CLIError {
	if err == nil {
		err = fmt.Errorf("prediction %s", status)
	}
	return &CLIError{
		Type:   ErrorTypePredictionFailed,
		Err:    err,
		Status: status,
	}
}

// CancellationError reports a user initiated abort
func CancellationError(err error) *CLIError {
	if err == nil {
		err = stderrors.New("generation canceled")
	}
	return &CLIError{
		Type: ErrorTypeCancellation,
		Err:  err,
	}
}

// TimeoutError reports a job that did not reach a terminal state in time
func TimeoutError(err error) *CLIError {
	return &CLIError{
		Type: ErrorTypeTimeout,
		Err:  err,
	}
}

// StoryboardFormatError reports an LLM response that is not a storyboard document
func StoryboardFormatError(err error) *CLIError {
	return &CLIError{
		Type:    ErrorTypeStoryboardFormat,
		Err:     err,
		Context: "The language model did not return a scenes array. Try again or rephrase the prompt.",
	}
}

// TypeOf returns the ErrorType of the first CLIError in err's chain
func TypeOf(err error) ErrorType {
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		return cliErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain holds a CLIError of type t
func IsType(err error, t ErrorType) bool {
	return stderrors.Is(err, &CLIError{Type: t})
}

// IsCancellation reports whether err is a user initiated abort
func IsCancellation(err error) bool {
	return IsType(err, ErrorTypeCancellation)
}

// StatusOf returns the remote prediction status carried by a prediction failure
func StatusOf(err error) string {
	var cliErr *CLIError
	for e := err; e != nil; {
		if !stderrors.As(e, &cliErr) {
			return ""
		}
		if cliErr.Status != "" {
			return cliErr.Status
		}
		e = cliErr.Err
	}
	return ""
}
