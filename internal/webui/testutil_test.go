package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/kubiyabot/storyboard/internal/catalog"
	"github.com/kubiyabot/storyboard/internal/config"
	"github.com/kubiyabot/storyboard/internal/generation"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/params"
	"github.com/kubiyabot/storyboard/internal/pterm"
	"github.com/kubiyabot/storyboard/internal/storyboard"
	"github.com/kubiyabot/storyboard/internal/studio"
	"github.com/kubiyabot/storyboard/internal/uploads"
	"github.com/kubiyabot/storyboard/internal/util"
)

// fakeProvider succeeds every prediction unless its prompt starts with "hang"
type fakeProvider struct {
	mu      sync.Mutex
	seq     int
	prompts map[string]string
	tokens  []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{prompts: map[string]string{}}
}

func (p *fakeProvider) Submit(ctx context.Context, token string, req generation.SubmitRequest) (generation.Prediction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("pred-%d", p.seq)
	prompt, _ := req.Input["prompt"].Str()
	p.prompts[id] = prompt
	p.tokens = append(p.tokens, token)
	return generation.Prediction{ID: id, Status: generation.StatusStarting}, nil
}

func (p *fakeProvider) Status(ctx context.Context, token, id string) (generation.Prediction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if strings.HasPrefix(p.prompts[id], "hang") {
		return generation.Prediction{ID: id, Status: generation.StatusProcessing}, nil
	}
	out, _ := json.Marshal("https://cdn.example/" + id + ".out")
	return generation.Prediction{ID: id, Status: generation.StatusSucceeded, Output: out}, nil
}

func (p *fakeProvider) Cancel(ctx context.Context, token, id string) error { return nil }

func (p *fakeProvider) lastToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tokens) == 0 {
		return ""
	}
	return p.tokens[len(p.tokens)-1]
}

type fakeWriter struct{}

func (fakeWriter) WriteScript(ctx context.Context, prompt string, format storyboard.Format, mode storyboard.Mode) ([]storyboard.ScriptEntry, error) {
	return []storyboard.ScriptEntry{
		{Scene: "Dawn over the hills", ImagePrompt: "img-1", VideoPrompt: "vid-1", SoundPrompt: "snd-1"},
		{Scene: "A fox wakes up", ImagePrompt: "hang-img-2", VideoPrompt: "vid-2", SoundPrompt: "snd-2"},
	}, nil
}

func testModels() []catalog.ModelConfig {
	return []catalog.ModelConfig{
		{
			ID: "acme/flux", Category: media.Image, Endpoint: "acme/flux", Version: "v-img",
			InputMapping: catalog.InputMapping{Prompt: "prompt"},
			ParamTypes:   map[string]params.Type{"prompt": params.TypeString},
			QualityScore: 50, Confidence: 0.9, Description: "fast image model",
		},
		{
			ID: "acme/kling", Category: media.Video, Endpoint: "acme/kling", Version: "v-vid",
			InputMapping: catalog.InputMapping{Prompt: "prompt", Image: "start_image"},
			QualityScore: 40, Confidence: 0.9,
		},
	}
}

type testEnv struct {
	server   *Server
	studio   *studio.Studio
	provider *fakeProvider
	state    *State
	logger   *pterm.Logger
}

// newTestServer wires a Server over a fake provider, a fake script writer and
// local uploads
func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	logger := pterm.Discard()
	state := NewState()
	reg := catalog.NewRegistry(nil, nil, 0, logger)
	t.Cleanup(reg.Close)
	reg.Add(testModels()...)

	provider := newFakeProvider()
	st := studio.New(studio.Options{
		Registry: reg,
		Provider: provider,
		Writer:   fakeWriter{},
		Sink:     state,
		Logger:   logger,
		Lifecycle: generation.LifecycleConfig{
			PollInterval: time.Millisecond,
			MaxDuration:  10 * time.Second,
			Retry:        &util.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
		},
		DefaultToken:     "r8_config",
		SubmitsPerSecond: 1000,
	})

	store := uploads.NewMemoryStore(time.Hour)
	t.Cleanup(store.Close)
	up, err := uploads.NewService(uploads.Options{
		Store:  store,
		Fs:     afero.NewMemMapFs(),
		Dir:    "/data/uploads",
		Secret: []byte("test-secret"),
		Logger: logger,
	})
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.ReplicateToken = "r8_config"

	srv, err := NewServer(Options{Studio: st, Uploads: up, State: state, Config: cfg, Logger: logger, Version: "v0.0.0-test"})
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{server: srv, studio: st, provider: provider, state: state, logger: logger}
}

// parseJSONResponse parses JSON response body into the provided struct
func parseJSONResponse(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to parse response JSON: %v", err)
	}
}

// assertStatusCode asserts the HTTP status code
func assertStatusCode(t *testing.T, rec *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rec.Code != expected {
		t.Errorf("expected status %d, got %d. body: %s", expected, rec.Code, rec.Body.String())
	}
}

// mockLogEntry creates a mock log entry for testing
func mockLogEntry(level LogLevel, message string) LogEntry {
	return LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Component: "test",
		Message:   message,
	}
}
