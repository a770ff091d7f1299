package replicate

import (
	"context"

	"github.com/kubiyabot/storyboard/internal/catalog"
	"github.com/kubiyabot/storyboard/internal/generation"
)

var (
	_ generation.Provider = (*Provider)(nil)
	_ catalog.Lister      = (*Client)(nil)
)

// Provider adapts Client to the generation lifecycle
type Provider struct {
	client *Client
}

// NewProvider wraps c
func NewProvider(c *Client) *Provider {
	return &Provider{client: c}
}

// Submit creates a prediction
func (p *Provider) Submit(ctx context.Context, token string, req generation.SubmitRequest) (generation.Prediction, error) {
	pred, err := p.client.CreatePrediction(ctx, token, req.Endpoint, req.Version, req.Input.Payload())
	if err != nil {
		return generation.Prediction{}, err
	}
	return toPrediction(pred), nil
}

// Status reads a prediction
func (p *Provider) Status(ctx context.Context, token, id string) (generation.Prediction, error) {
	pred, err := p.client.GetPrediction(ctx, token, id)
	if err != nil {
		return generation.Prediction{}, err
	}
	return toPrediction(pred), nil
}

// Cancel stops a prediction
func (p *Provider) Cancel(ctx context.Context, token, id string) error {
	return p.client.CancelPrediction(ctx, token, id)
}

func toPrediction(p *Prediction) generation.Prediction {
	return generation.Prediction{
		ID:     p.ID,
		Status: p.Status,
		Output: p.Output,
		Error:  p.ErrorMessage(),
		Logs:   p.Logs,
	}
}
