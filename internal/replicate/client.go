package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/kubiyabot/storyboard/internal/catalog"
	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/pterm"
)

const (
	DefaultBaseURL = "https://api.replicate.com/v1"
	DefaultTimeout = 60 * time.Second
)

// Client is a thin Replicate REST client. Every call takes the bearer token
// it runs with; the client itself holds no credential.
type Client struct {
	http   *resty.Client
	logger *pterm.Logger
}

// NewClient creates a Client for baseURL ("" uses the public API)
func NewClient(baseURL string, timeout time.Duration, userAgent string, logger *pterm.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{logger: logger}
	c.http = resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent).
		OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			c.logger.Debug("Replicate request",
				"method", resp.Request.Method,
				"url", resp.Request.URL,
				"status", resp.StatusCode(),
				"took", resp.Time().Round(time.Millisecond),
			)
			return nil
		})
	return c
}

// APIError is a non-2xx Replicate response
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("replicate: %d %s", e.Status, msg)
}

// StatusCode returns the HTTP status of the response
func (e *APIError) StatusCode() int { return e.Status }

// Prediction is the Replicate prediction resource
type Prediction struct {
	ID        string          `json:"id"`
	Model     string          `json:"model,omitempty"`
	Version   string          `json:"version,omitempty"`
	Status    string          `json:"status"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
	Logs      string          `json:"logs,omitempty"`
	CreatedAt string          `json:"created_at,omitempty"`
	URLs      struct {
		Get    string `json:"get,omitempty"`
		Cancel string `json:"cancel,omitempty"`
	} `json:"urls"`
}

// ErrorMessage flattens the error field, which may be a string, an object or null
func (p Prediction) ErrorMessage() string {
	if len(p.Error) == 0 {
		return ""
	}
	e := gjson.ParseBytes(p.Error)
	switch {
	case e.Type == gjson.Null:
		return ""
	case e.Type == gjson.String:
		return e.String()
	case e.Get("detail").Exists():
		return e.Get("detail").String()
	}
	return e.Raw
}

// File is an uploaded file
type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	CreatedAt   string `json:"created_at,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	URLs        struct {
		Get string `json:"get,omitempty"`
	} `json:"urls"`
}

// CreatePrediction starts a job. A version pins the model version; without one
// the model's deployment endpoint is used.
func (c *Client) CreatePrediction(ctx context.Context, token, endpoint, version string, input map[string]interface{}) (*Prediction, error) {
	body := map[string]interface{}{"input": input}
	path := "/predictions"
	if version != "" {
		body["version"] = version
	} else {
		owner, name, _, ok := catalog.ParseModelRef(endpoint)
		if !ok {
			return nil, clierrors.ValidationError(fmt.Errorf("invalid model %q", endpoint), "")
		}
		path = fmt.Sprintf("/models/%s/%s/predictions", url.PathEscape(owner), url.PathEscape(name))
	}

	var pred Prediction
	if err := c.do(ctx, token, http.MethodPost, path, body, &pred); err != nil {
		return nil, err
	}
	return &pred, nil
}

// GetPrediction reads a job's current state
func (c *Client) GetPrediction(ctx context.Context, token, id string) (*Prediction, error) {
	var pred Prediction
	if err := c.do(ctx, token, http.MethodGet, "/predictions/"+url.PathEscape(id), nil, &pred); err != nil {
		return nil, err
	}
	return &pred, nil
}

// CancelPrediction asks Replicate to stop a job
func (c *Client) CancelPrediction(ctx context.Context, token, id string) error {
	return c.do(ctx, token, http.MethodPost, "/predictions/"+url.PathEscape(id)+"/cancel", nil, nil)
}

// ListModels returns one page of public models. cursor is either empty, a
// cursor value, or the full "next" URL of the previous page.
func (c *Client) ListModels(ctx context.Context, token, cursor string) (catalog.Page, error) {
	req := c.request(ctx, token)
	if cur := cursorValue(cursor); cur != "" {
		req.SetQueryParam("cursor", cur)
	}
	var page catalog.Page
	err := c.send(req.SetResult(&page), http.MethodGet, "/models")
	return page, err
}

// SearchModels runs a free-text model search
func (c *Client) SearchModels(ctx context.Context, token, query string) (catalog.Page, error) {
	req := c.request(ctx, token).
		SetHeader("Content-Type", "text/plain").
		SetBody(query)
	var page catalog.Page
	err := c.send(req.SetResult(&page), "QUERY", "/models")
	return page, err
}

// GetModel fetches one model with its latest version schema
func (c *Client) GetModel(ctx context.Context, token, owner, name string) (catalog.RawEntry, error) {
	var entry catalog.RawEntry
	path := fmt.Sprintf("/models/%s/%s", url.PathEscape(owner), url.PathEscape(name))
	err := c.do(ctx, token, http.MethodGet, path, nil, &entry)
	return entry, err
}

// UploadFile stores r as a Replicate file
func (c *Client) UploadFile(ctx context.Context, token, filename, contentType string, r io.Reader) (*File, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	var f File
	req := c.request(ctx, token).
		SetMultipartField("content", filename, contentType, r).
		SetResult(&f)
	if err := c.send(req, http.MethodPost, "/files"); err != nil {
		return nil, err
	}
	return &f, nil
}

// DownloadFile streams an uploaded file. The caller closes the body.
func (c *Client) DownloadFile(ctx context.Context, token, id string) (io.ReadCloser, string, error) {
	resp, err := c.request(ctx, token).
		SetDoNotParseResponse(true).
		Get("/files/" + url.PathEscape(id) + "/download")
	if err != nil {
		return nil, "", c.transportError(ctx, err)
	}
	body := resp.RawBody()
	if resp.IsError() {
		defer body.Close()
		raw, _ := io.ReadAll(io.LimitReader(body, 64<<10))
		return nil, "", apiError(resp.StatusCode(), raw)
	}
	return body, resp.Header().Get("Content-Type"), nil
}

func (c *Client) request(ctx context.Context, token string) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}
	return req
}

func (c *Client) do(ctx context.Context, token, method, path string, body, out interface{}) error {
	req := c.request(ctx, token)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	return c.send(req, method, path)
}

func (c *Client) send(req *resty.Request, method, path string) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return c.transportError(req.Context(), err)
	}
	if resp.IsError() {
		return apiError(resp.StatusCode(), resp.Body())
	}
	return nil
}

// transportError keeps context errors as they are; anything else is a network failure
func (c *Client) transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return clierrors.NetworkError(fmt.Errorf("replicate: %w", err))
}

func apiError(status int, body []byte) error {
	e := &APIError{Status: status}
	if len(body) > 0 {
		if err := json.Unmarshal(body, e); err != nil || (e.Detail == "" && e.Title == "") {
			e.Detail = strings.TrimSpace(string(body))
		}
		e.Status = status
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return clierrors.AuthErrorWithContext(e, "Check your Replicate API token.")
	}
	return e
}

func cursorValue(cursor string) string {
	if !strings.Contains(cursor, "?") {
		return cursor
	}
	u, err := url.Parse(cursor)
	if err != nil {
		return ""
	}
	return u.Query().Get("cursor")
}
