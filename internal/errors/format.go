package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// FormatError formats a CLIError for display to the user
// Returns a user-friendly error message with context
func FormatError(err *CLIError) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	// Add error type prefix for clarity
	switch err.Type {
	case ErrorTypeValidation:
		sb.WriteString("✗ Validation Error: ")
	case ErrorTypeAuth:
		sb.WriteString("✗ Authentication Error: ")
	case ErrorTypeAPI:
		sb.WriteString("✗ API Error: ")
	case ErrorTypeNetwork:
		sb.WriteString("✗ Network Error: ")
	case ErrorTypeConfig:
		sb.WriteString("✗ Configuration Error: ")
	case ErrorTypeModelConfig:
		sb.WriteString("✗ Model Configuration Error: ")
	case ErrorTypeSubmission:
		sb.WriteString("✗ Submission Error: ")
	case ErrorTypeOutputFormat:
		sb.WriteString("✗ Output Error: ")
	case ErrorTypePredictionFailed:
		if err.Status != "" {
			sb.WriteString(fmt.Sprintf("✗ Prediction %s: ", err.Status))
		} else {
			sb.WriteString("✗ Prediction Failed: ")
		}
	case ErrorTypeTimeout:
		sb.WriteString("✗ Timeout: ")
	case ErrorTypeCancellation:
		sb.WriteString("⊘ Canceled: ")
	case ErrorTypeStoryboardFormat:
		sb.WriteString("✗ Storyboard Error: ")
	default:
		sb.WriteString("✗ Error: ")
	}

	// Add the main error message
	sb.WriteString(err.Err.Error())

	// Add context/help text if provided
	if err.Context != "" {
		sb.WriteString("\n\n")
		sb.WriteString(err.Context)
	}

	return sb.String()
}

// FormatSimple formats an error without type prefix
// Useful for wrapping non-CLIError types
func FormatSimple(err error) string {
	if err == nil {
		return ""
	}

	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		return FormatError(cliErr)
	}

	return fmt.Sprintf("✗ Error: %v", err)
}
