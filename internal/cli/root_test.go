package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/kubiyabot/storyboard/internal/catalog"
	"github.com/kubiyabot/storyboard/internal/config"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/output"
	"github.com/kubiyabot/storyboard/internal/params"
	"github.com/kubiyabot/storyboard/internal/pterm"
)

func rootExecuteCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err = root.ExecuteContext(context.Background())
	return buf.String(), err
}

// fakeAPI answers the OpenAI chat endpoint and the Replicate prediction
// endpoints. Every prediction succeeds on the first poll.
type fakeAPI struct {
	mu      sync.Mutex
	seq     int
	inputs  map[string]map[string]interface{}
	auth    []string
	scenes  string
	failFor string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{
		inputs: map[string]map[string]interface{}{},
		scenes: `{"scenes": [
			{"scene": "Dawn over the hills", "scene_image_prompt": "misty hills", "scene_video_prompt": "camera pans", "scene_sound_prompt": "birdsong"},
			{"scene": "A fox wakes up", "scene_image_prompt": "sleepy fox", "scene_video_prompt": "fox stretches", "scene_sound_prompt": "rustling"}
		]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) serveHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/openai/chat/completions":
		raw, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": f.scenes}, "finish_reason": "stop"},
			},
		})
		_, _ = w.Write(raw)

	case r.Method == http.MethodPost && r.URL.Path == "/v1/predictions":
		var body struct {
			Input map[string]interface{} `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.seq++
		id := fmt.Sprintf("p%d", f.seq)
		f.inputs[id] = body.Input
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id": %q, "status": "starting"}`, id)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/predictions/"):
		id := strings.TrimPrefix(r.URL.Path, "/v1/predictions/")
		if prompt, _ := f.inputs[id]["prompt"].(string); prompt != "" && prompt == f.failFor {
			fmt.Fprintf(w, `{"id": %q, "status": "failed", "error": "NSFW content detected"}`, id)
			return
		}
		fmt.Fprintf(w, `{"id": %q, "status": "succeeded", "output": "https://cdn.example/%s.png"}`, id, id)

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail": "not found"}`)
	}
}

func (f *fakeAPI) input(id string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[id]
}

func cachedModels() []catalog.ModelConfig {
	return []catalog.ModelConfig{
		{
			ID: "acme/flux", Owner: "acme", Name: "flux", Category: media.Image, Endpoint: "acme/flux", Version: "v-img",
			InputMapping:  catalog.InputMapping{Prompt: "prompt"},
			DefaultParams: params.Params{"num_outputs": params.Int(1)},
			ParamTypes:    map[string]params.Type{"prompt": params.TypeString, "num_outputs": params.TypeInteger},
			QualityScore:  60, Confidence: 0.9, RunCount: 1_200_000, Description: "fast image model",
		},
		{
			ID: "acme/kling", Owner: "acme", Name: "kling", Category: media.Video, Endpoint: "acme/kling", Version: "v-vid",
			InputMapping: catalog.InputMapping{Prompt: "prompt", Image: "start_image"},
			QualityScore: 40, Confidence: 0.8, Description: "image to video",
		},
	}
}

type testApp struct {
	*app
	api      *fakeAPI
	progress *bytes.Buffer
}

// newTestApp wires an app over an in-memory fs, a fake API server and a
// populated model cache
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	api, srv := newFakeAPI(t)

	cfg := config.Default()
	cfg.DataDir = "/data"
	cfg.ReplicateToken = "r8_test"
	cfg.OpenAIAPIKey = "sk-test"
	cfg.ReplicateBaseURL = srv.URL + "/v1"
	cfg.OpenAIBaseURL = srv.URL + "/openai"
	cfg.PollInterval = time.Millisecond
	cfg.MaxPollDuration = 5 * time.Second

	fs := afero.NewMemMapFs()
	raw, err := json.Marshal(cachedModels())
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/data/models.json", raw, 0o644))

	progress := new(bytes.Buffer)
	a := &app{
		fs:       fs,
		cfg:      cfg,
		logger:   pterm.Discard(),
		progress: output.NewProgressManagerWithWriter(output.OutputModeCI, progress),
	}
	return &testApp{app: a, api: api, progress: progress}
}

func (ta *testApp) run(args ...string) (string, error) {
	return rootExecuteCommand(newRootCommand(ta.app), args...)
}
