package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kubiyabot/storyboard/internal/util"
)

type step struct {
	pred Prediction
	err  error
}

func pending(status string) step {
	return step{pred: Prediction{ID: "abc", Status: status}}
}

func succeeded(output string) step {
	return step{pred: Prediction{ID: "abc", Status: StatusSucceeded, Output: json.RawMessage(output)}}
}

func failing(err error) step {
	return step{err: err}
}

// fakeProvider replays a scripted status sequence; the last step repeats
type fakeProvider struct {
	mu sync.Mutex

	submitID  string
	submitErr error
	onSubmit  func(ctx context.Context)
	steps     []step
	cancelErr error

	submitted []SubmitRequest
	tokens    []string
	polls     int
	canceled  []string
}

func newFakeProvider(steps ...step) *fakeProvider {
	return &fakeProvider{submitID: "abc", steps: steps}
}

func (f *fakeProvider) Submit(ctx context.Context, token string, req SubmitRequest) (Prediction, error) {
	if f.onSubmit != nil {
		f.onSubmit(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	f.tokens = append(f.tokens, token)
	if f.submitErr != nil {
		return Prediction{}, f.submitErr
	}
	return Prediction{ID: f.submitID, Status: StatusStarting}, nil
}

func (f *fakeProvider) Status(ctx context.Context, token, id string) (Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != f.submitID {
		return Prediction{}, fmt.Errorf("unknown prediction %q", id)
	}
	if len(f.steps) == 0 {
		return Prediction{ID: id, Status: StatusProcessing}, nil
	}
	i := f.polls
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.polls++
	s := f.steps[i]
	return s.pred, s.err
}

func (f *fakeProvider) Cancel(ctx context.Context, token, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, token+":"+id)
	return f.cancelErr
}

func (f *fakeProvider) cancelCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.canceled...)
}

func (f *fakeProvider) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

// httpStatusError mimics a provider error carrying an HTTP status
type httpStatusError struct{ code int }

func (e httpStatusError) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e httpStatusError) StatusCode() int { return e.code }

func fastLifecycle(p Provider) *Lifecycle {
	return NewLifecycle(p, LifecycleConfig{
		PollInterval: time.Millisecond,
		MaxDuration:  5 * time.Second,
		Retry: &util.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
			Multiplier:   2,
		},
	}, nil)
}
