package webui

import (
	"errors"
	"net/http"

	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/uploads"
)

var errorTypeNames = map[clierrors.ErrorType]string{
	clierrors.ErrorTypeValidation:       "validation",
	clierrors.ErrorTypeAuth:             "auth",
	clierrors.ErrorTypeAPI:              "api",
	clierrors.ErrorTypeNetwork:          "network",
	clierrors.ErrorTypeRuntime:          "runtime",
	clierrors.ErrorTypeConfig:           "config",
	clierrors.ErrorTypeModelConfig:      "model_config",
	clierrors.ErrorTypeSubmission:       "submission",
	clierrors.ErrorTypeOutputFormat:     "output_format",
	clierrors.ErrorTypePredictionFailed: "prediction_failed",
	clierrors.ErrorTypeCancellation:     "canceled",
	clierrors.ErrorTypeTimeout:          "timeout",
	clierrors.ErrorTypeStoryboardFormat: "storyboard_format",
}

// httpStatus maps an error to the response status
func httpStatus(err error) int {
	switch {
	case errors.Is(err, uploads.ErrUploadExpired):
		return http.StatusGone
	case errors.Is(err, uploads.ErrInvalidSignature):
		return http.StatusForbidden
	}

	switch clierrors.TypeOf(err) {
	case clierrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case clierrors.ErrorTypeAuth:
		return http.StatusUnauthorized
	case clierrors.ErrorTypeConfig, clierrors.ErrorTypeModelConfig:
		return http.StatusUnprocessableEntity
	case clierrors.ErrorTypeAPI, clierrors.ErrorTypeNetwork, clierrors.ErrorTypeSubmission,
		clierrors.ErrorTypePredictionFailed, clierrors.ErrorTypeOutputFormat, clierrors.ErrorTypeStoryboardFormat:
		return http.StatusBadGateway
	case clierrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case clierrors.ErrorTypeCancellation:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeErr writes err as an ErrorResponse
func writeErr(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var cliErr *clierrors.CLIError
	if errors.As(err, &cliErr) {
		resp.Type = errorTypeNames[cliErr.Type]
		if cliErr.Err != nil {
			resp.Error = cliErr.Err.Error()
		}
		resp.Hint = cliErr.Context
	}
	writeJSONStatus(w, httpStatus(err), resp)
}
