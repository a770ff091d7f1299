package generation

import (
	"context"
	"encoding/json"

	"github.com/kubiyabot/storyboard/internal/params"
)

// Remote prediction statuses
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Prediction is the provider's view of one job
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
	Logs   string          `json:"logs,omitempty"`
}

// Terminal reports whether the prediction stopped changing
func (p Prediction) Terminal() bool {
	switch p.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// SubmitRequest creates a prediction
type SubmitRequest struct {
	// Endpoint is "owner/name"
	Endpoint string
	Version  string
	Input    params.Params
}

// Provider is the media generation backend. The token authenticates each call.
type Provider interface {
	Submit(ctx context.Context, token string, req SubmitRequest) (Prediction, error)
	Status(ctx context.Context, token, id string) (Prediction, error)
	Cancel(ctx context.Context, token, id string) error
}
