package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/pterm"
	"github.com/kubiyabot/storyboard/internal/storyboard"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 90 * time.Second
)

// Message is one chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// APIError is a non-2xx response
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai: %d %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status
func (e *APIError) StatusCode() int { return e.Status }

// Client calls the chat completions API
type Client struct {
	http   *resty.Client
	apiKey string
	model  string
	logger *pterm.Logger
}

// NewClient creates a Client. Empty baseURL and model use the defaults.
func NewClient(baseURL, apiKey, model string, logger *pterm.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(DefaultTimeout).
			SetHeader("Content-Type", "application/json"),
		apiKey: apiKey,
		model:  model,
		logger: logger,
	}
}

// Complete sends messages and returns the first choice's content. jsonMode asks
// for a JSON object response.
func (c *Client) Complete(ctx context.Context, messages []Message, jsonMode bool) (string, error) {
	if c.apiKey == "" {
		return "", clierrors.ConfigErrorWithContext(errors.New("OpenAI API key is not set"), "Set OPENAI_API_KEY.")
	}

	body := chatRequest{Model: c.model, Messages: messages, Temperature: 0.8}
	if jsonMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var out chatResponse
	var apiErr errorResponse
	started := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", clierrors.NetworkError(fmt.Errorf("openai: %w", err))
	}
	c.logger.Debug("Chat completion", "model", c.model, "status", resp.StatusCode(), "took", time.Since(started).Round(time.Millisecond))

	if resp.IsError() {
		e := &APIError{Status: resp.StatusCode(), Message: apiErr.Error.Message}
		if e.Message == "" {
			e.Message = http.StatusText(e.Status)
		}
		if e.Status == http.StatusUnauthorized {
			return "", clierrors.AuthErrorWithContext(e, "Check OPENAI_API_KEY.")
		}
		return "", clierrors.APIError(e)
	}
	if len(out.Choices) == 0 {
		return "", clierrors.APIError(errors.New("openai: response has no choices"))
	}
	return out.Choices[0].Message.Content, nil
}

// WriteScript asks the model for a storyboard script and parses it
func (c *Client) WriteScript(ctx context.Context, prompt string, format storyboard.Format, mode storyboard.Mode) ([]storyboard.ScriptEntry, error) {
	content, err := c.Complete(ctx, []Message{
		{Role: "system", Content: systemPrompt(format, mode)},
		{Role: "user", Content: prompt},
	}, true)
	if err != nil {
		return nil, err
	}
	entries, err := storyboard.ParseScript(content)
	if err != nil {
		c.logger.Debug("Unparseable script", "content", content)
		return nil, err
	}
	return entries, nil
}

func systemPrompt(format storyboard.Format, mode storyboard.Mode) string {
	low, high := mode.SceneRange()
	detail := "Keep every prompt to one vivid sentence."
	if mode == storyboard.ModeDetailed {
		detail = "Write rich prompts: subject, setting, lighting, lens and mood for images; camera motion and action for video; layered ambience for sound."
	}
	return fmt.Sprintf(`You are a storyboard artist for short %s videos (aspect ratio %s).
Split the user's idea into %d to %d consecutive scenes.
%s
Answer with a JSON object of this exact shape and nothing else:
{"scenes": [{"scene": "what happens", "scene_image_prompt": "still frame prompt", "scene_video_prompt": "motion prompt for animating that frame", "scene_sound_prompt": "sound effects and ambience"}]}`,
		format, format.AspectRatio(), low, high, detail)
}
