package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/params"
	"github.com/kubiyabot/storyboard/internal/pterm"
	"github.com/kubiyabot/storyboard/internal/util"
)

// State is a lifecycle state
type State string

const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxDuration  = 10 * time.Minute

	remoteCancelTimeout = 10 * time.Second
)

var errMaxDuration = errors.New("maximum generation time exceeded")

// LifecycleConfig tunes polling
type LifecycleConfig struct {
	PollInterval time.Duration
	MaxDuration  time.Duration
	// Retry applies to status reads; nil uses a short exponential backoff
	Retry *util.RetryConfig
}

// Request is one generation attempt
type Request struct {
	Endpoint string
	Version  string
	Input    params.Params
	Token    string

	// OnSubmit receives the prediction id as soon as it is known
	OnSubmit func(id string)
	// OnState observes every state transition
	OnState func(state State, p Prediction)
}

// Result is a resolved prediction
type Result struct {
	PredictionID string        `json:"predictionId"`
	URL          string        `json:"url"`
	Outputs      []string      `json:"outputs,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
	Polls        int           `json:"polls"`
}

// Lifecycle runs predictions to completion: submit, poll, resolve
type Lifecycle struct {
	provider     Provider
	pollInterval time.Duration
	maxDuration  time.Duration
	retry        *util.RetryConfig
	logger       *pterm.Logger
}

// NewLifecycle creates a Lifecycle; zero config values use the defaults
func NewLifecycle(provider Provider, cfg LifecycleConfig, logger *pterm.Logger) *Lifecycle {
	l := &Lifecycle{
		provider:     provider,
		pollInterval: cfg.PollInterval,
		maxDuration:  cfg.MaxDuration,
		retry:        cfg.Retry,
		logger:       logger,
	}
	if l.pollInterval <= 0 {
		l.pollInterval = DefaultPollInterval
	}
	if l.maxDuration <= 0 {
		l.maxDuration = DefaultMaxDuration
	}
	if l.retry == nil {
		l.retry = &util.RetryConfig{
			MaxAttempts:     4,
			InitialDelay:    500 * time.Millisecond,
			MaxDelay:        5 * time.Second,
			Multiplier:      2,
			RandomizeFactor: 0.2,
		}
	}
	retry := *l.retry
	if retry.RetryableFunc == nil {
		retry.RetryableFunc = IsTransient
	}
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, wait time.Duration, err error) {
			logger.Debug("Retrying status read", "attempt", attempt, "wait", wait.Round(time.Millisecond), "error", err)
		}
	}
	l.retry = &retry
	return l
}

// Run submits the request and polls until the prediction is terminal, ctx is
// done, or the maximum duration elapses.
func (l *Lifecycle) Run(ctx context.Context, req Request) (Result, error) {
	if req.Endpoint == "" || req.Version == "" {
		return Result{}, clierrors.ModelConfigError(fmt.Errorf("endpoint and version are required"))
	}
	if err := ctx.Err(); err != nil {
		return Result{}, clierrors.CancellationError(err)
	}

	started := time.Now()
	ctx, cancel := context.WithTimeoutCause(ctx, l.maxDuration, errMaxDuration)
	defer cancel()

	pred, err := l.provider.Submit(ctx, req.Token, SubmitRequest{
		Endpoint: req.Endpoint,
		Version:  req.Version,
		Input:    req.Input,
	})
	if err != nil {
		if abort := l.abortError(ctx, ""); abort != nil {
			return Result{}, abort
		}
		return Result{}, clierrors.SubmissionError(fmt.Errorf("create prediction on %s: %w", req.Endpoint, err))
	}
	if pred.ID == "" {
		return Result{}, clierrors.SubmissionError(fmt.Errorf("provider returned a prediction without an id"))
	}

	l.logger.Debug("Prediction submitted", "id", pred.ID, "model", req.Endpoint)
	if req.OnSubmit != nil {
		req.OnSubmit(pred.ID)
	}
	notify(req, StateSubmitted, pred)

	// canceled while the submit call was in flight
	if abort := l.abortError(ctx, pred.ID); abort != nil {
		l.cancelRemote(ctx, req.Token, pred.ID)
		return Result{}, abort
	}

	polls := 0
	for !pred.Terminal() {
		if polls == 0 {
			notify(req, StatePolling, pred)
		}

		timer := time.NewTimer(l.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			abort := l.abortError(ctx, pred.ID)
			if clierrors.IsType(abort, clierrors.ErrorTypeTimeout) {
				l.cancelRemote(ctx, req.Token, pred.ID)
			}
			notify(req, StateCanceled, pred)
			return Result{}, abort
		case <-timer.C:
		}

		polls++
		next, err := l.poll(ctx, req.Token, pred.ID)
		if err != nil {
			if abort := l.abortError(ctx, pred.ID); abort != nil {
				if clierrors.IsType(abort, clierrors.ErrorTypeTimeout) {
					l.cancelRemote(ctx, req.Token, pred.ID)
				}
				notify(req, StateCanceled, pred)
				return Result{}, abort
			}
			notify(req, StateFailed, pred)
			return Result{}, err
		}
		pred = next
	}

	result, err := resolve(pred)
	result.Elapsed = time.Since(started)
	result.Polls = polls
	if err != nil {
		if pred.Status == StatusCanceled {
			notify(req, StateCanceled, pred)
		} else {
			notify(req, StateFailed, pred)
		}
		return Result{}, err
	}

	notify(req, StateSucceeded, pred)
	l.logger.Debug("Prediction succeeded", "id", pred.ID, "polls", polls, "elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

func (l *Lifecycle) poll(ctx context.Context, token, id string) (Prediction, error) {
	var pred Prediction
	err := util.RetryWithBackoff(ctx, l.retry, "get prediction "+id, func() error {
		p, err := l.provider.Status(ctx, token, id)
		if err != nil {
			l.logger.Debug("Status read failed", "id", id, "error", err)
			return err
		}
		pred = p
		return nil
	})
	return pred, err
}

// abortError maps a done ctx onto a timeout or a cancellation
func (l *Lifecycle) abortError(ctx context.Context, id string) error {
	if ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(ctx)
	if errors.Is(cause, errMaxDuration) || errors.Is(cause, context.DeadlineExceeded) {
		what := "prediction"
		if id != "" {
			what = "prediction " + id
		}
		return clierrors.TimeoutError(fmt.Errorf("%s did not finish within %s: %w", what, l.maxDuration, cause))
	}
	return clierrors.CancellationError(cause)
}

// cancelRemote stops the remote job; failures are logged only
func (l *Lifecycle) cancelRemote(ctx context.Context, token, id string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteCancelTimeout)
	defer cancel()
	if err := l.provider.Cancel(cctx, token, id); err != nil {
		l.logger.Warning("Remote cancel failed", "id", id, "error", err)
	}
}

// resolve extracts the output URL of a terminal prediction
func resolve(p Prediction) (Result, error) {
	switch p.Status {
	case StatusFailed, StatusCanceled:
		var cause error
		if p.Error != "" {
			cause = fmt.Errorf("prediction %s %s: %s", p.ID, p.Status, p.Error)
		}
		return Result{}, clierrors.PredictionFailedError(p.Status, cause)
	}

	outputs, err := outputURLs(p.Output)
	if err != nil {
		return Result{}, clierrors.OutputFormatError(fmt.Errorf("prediction %s: %w", p.ID, err))
	}
	return Result{PredictionID: p.ID, URL: outputs[0], Outputs: outputs}, nil
}

// outputURLs accepts a URI string or a non-empty array whose first element is one
func outputURLs(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("output is empty")
	}
	out := gjson.ParseBytes(raw)
	switch {
	case out.Type == gjson.String:
		if s := strings.TrimSpace(out.String()); s != "" {
			return []string{s}, nil
		}
		return nil, fmt.Errorf("output is an empty string")
	case out.IsArray():
		items := out.Array()
		if len(items) == 0 {
			return nil, fmt.Errorf("output is an empty list")
		}
		if items[0].Type != gjson.String || strings.TrimSpace(items[0].String()) == "" {
			return nil, fmt.Errorf("first output is not a URL")
		}
		urls := make([]string, 0, len(items))
		for _, item := range items {
			if item.Type == gjson.String && item.String() != "" {
				urls = append(urls, item.String())
			}
		}
		return urls, nil
	}
	return nil, fmt.Errorf("unexpected output %s", truncate(out.Raw, 80))
}

// IsTransient reports whether a status read may succeed when retried:
// network errors, 5xx responses and rate limiting
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if clierrors.IsType(err, clierrors.ErrorTypeNetwork) {
		return true
	}
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		code := coded.StatusCode()
		return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
	}
	return false
}

func notify(req Request, s State, p Prediction) {
	if req.OnState != nil {
		req.OnState(s, p)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
