package webui

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubiyabot/storyboard/internal/generation"
	"github.com/kubiyabot/storyboard/internal/storyboard"
	"github.com/kubiyabot/storyboard/internal/studio"
	"github.com/kubiyabot/storyboard/internal/uploads"
)

func do(t *testing.T, h http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createBoard(t *testing.T, h http.Handler) storyboard.StoryboardData {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/storyboard", CreateStoryboardRequest{Prompt: "a fox at dawn", Format: storyboard.FormatSquare})
	assertStatusCode(t, rec, http.StatusCreated)
	var board storyboard.StoryboardData
	parseJSONResponse(t, rec, &board)
	return board
}

func TestHealth(t *testing.T) {
	env := newTestServer(t)
	rec := do(t, env.server.Handler(), http.MethodGet, "/api/health", nil)
	assertStatusCode(t, rec, http.StatusOK)

	var health HealthResponse
	parseJSONResponse(t, rec, &health)
	assert.Equal(t, "degraded", health.Status, "no OpenAI key configured")
	assert.Equal(t, "ok", health.Components["replicate"].Status)
	assert.Equal(t, "v0.0.0-test", health.Version)
	assert.Equal(t, 2, health.Models)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestConfig_HidesTokens(t *testing.T) {
	env := newTestServer(t)
	rec := do(t, env.server.Handler(), http.MethodGet, "/api/config", nil)
	assertStatusCode(t, rec, http.StatusOK)
	assert.NotContains(t, rec.Body.String(), "r8_config")
	assert.Contains(t, rec.Body.String(), `"hasReplicateToken":true`)
}

func TestSettings(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()

	rec := do(t, h, http.MethodPut, "/api/settings", map[string]interface{}{"video": map[string]string{"model": "acme/kling"}})
	assertStatusCode(t, rec, http.StatusOK)
	assert.Equal(t, "acme/kling", env.studio.Settings().Video.Model)

	rec = do(t, h, http.MethodPut, "/api/settings", map[string]interface{}{"image": map[string]string{"model": "no-owner"}})
	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestStoryboard_CreateAndGet(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()

	rec := do(t, h, http.MethodGet, "/api/storyboard", nil)
	assertStatusCode(t, rec, http.StatusNotFound)

	board := createBoard(t, h)
	require.Len(t, board.Scenes, 2)
	assert.Equal(t, storyboard.FormatSquare, board.Format)
	assert.Equal(t, storyboard.ModeShort, board.Mode)

	rec = do(t, h, http.MethodGet, "/api/storyboard", nil)
	assertStatusCode(t, rec, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "A fox wakes up")
}

func TestStoryboard_CreateRejectsEmptyPrompt(t *testing.T) {
	env := newTestServer(t)
	rec := do(t, env.server.Handler(), http.MethodPost, "/api/storyboard", CreateStoryboardRequest{Prompt: "   "})
	assertStatusCode(t, rec, http.StatusBadRequest)

	var resp ErrorResponse
	parseJSONResponse(t, rec, &resp)
	assert.Equal(t, "validation", resp.Type)
}

func TestStoryboard_CreateRejectsUnknownFields(t *testing.T) {
	env := newTestServer(t)
	rec := do(t, env.server.Handler(), http.MethodPost, "/api/storyboard", map[string]string{"prompt": "x", "scenes": "5"})
	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestPatchScene(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()
	createBoard(t, h)

	rec := do(t, h, http.MethodPatch, "/api/scenes/1", map[string]interface{}{
		"script": "Sunrise",
		"image":  map[string]interface{}{"prompt": "golden hills", "params": map[string]interface{}{"seed": 7}},
	})
	assertStatusCode(t, rec, http.StatusOK)

	var scene storyboard.Scene
	parseJSONResponse(t, rec, &scene)
	assert.Equal(t, "Sunrise", scene.Script)
	assert.Equal(t, "golden hills", scene.Image.Prompt)
	assert.Equal(t, "7", scene.Image.Params["seed"].String())

	tests := []struct {
		path string
		want int
	}{
		{"/api/scenes/99", http.StatusBadRequest},
		{"/api/scenes/abc", http.StatusBadRequest},
		{"/api/scenes/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := do(t, h, http.MethodPatch, tt.path, map[string]string{"script": "x"})
		assertStatusCode(t, rec, tt.want)
	}
}

func TestGenerate(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()
	createBoard(t, h)

	rec := do(t, h, http.MethodPost, "/api/generate/1/image", nil, "Authorization", "Bearer r8_header")
	assertStatusCode(t, rec, http.StatusOK)

	var out studio.Outcome
	parseJSONResponse(t, rec, &out)
	assert.Equal(t, "acme/flux", out.Model)
	assert.True(t, strings.HasSuffix(out.URL, ".out"))
	assert.Equal(t, "r8_header", env.provider.lastToken())

	rec = do(t, h, http.MethodPost, "/api/generate/1/video", nil)
	assertStatusCode(t, rec, http.StatusOK)
	assert.Equal(t, "r8_config", env.provider.lastToken(), "falls back to the configured token")

	board := env.studio.Storyboard()
	assert.True(t, board.Scenes[0].Image.Generated)
	assert.True(t, board.Scenes[0].Video.Generated)
}

func TestGenerate_Errors(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()
	createBoard(t, h)

	tests := []struct {
		name string
		path string
		want int
		typ  string
	}{
		{"unknown media", "/api/generate/1/hologram", http.StatusBadRequest, "validation"},
		{"bad scene", "/api/generate/x/image", http.StatusBadRequest, "validation"},
		{"missing image for video", "/api/generate/2/video", http.StatusBadRequest, "validation"},
		{"audio before video", "/api/generate/1/sound", http.StatusBadRequest, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, nil)
			assertStatusCode(t, rec, tt.want)
			var resp ErrorResponse
			parseJSONResponse(t, rec, &resp)
			assert.Equal(t, tt.typ, resp.Type)
		})
	}
}

func TestGenerateAllAndHistory(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()
	createBoard(t, h)
	_, err := env.studio.UpdateScene(2, storyboard.ScenePatch{Image: &storyboard.SlotPatch{Prompt: strPtr("img-2")}})
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/api/generate-all/image?policy=overwrite", nil)
	assertStatusCode(t, rec, http.StatusOK)
	var report studio.BatchReport
	parseJSONResponse(t, rec, &report)
	assert.Equal(t, 2, report.Succeeded)

	rec = do(t, h, http.MethodPost, "/api/generate-all/image", GenerateAllRequest{Policy: "skip-existing"})
	assertStatusCode(t, rec, http.StatusOK)
	parseJSONResponse(t, rec, &report)
	assert.Equal(t, 2, report.Skipped)

	rec = do(t, h, http.MethodPost, "/api/generate-all/image?policy=sometimes", nil)
	assertStatusCode(t, rec, http.StatusBadRequest)

	rec = do(t, h, http.MethodGet, "/api/generations", nil)
	assertStatusCode(t, rec, http.StatusOK)
	var gens GenerationsResponse
	parseJSONResponse(t, rec, &gens)
	assert.Empty(t, gens.Active)
	require.Len(t, gens.Recent, 2)
	assert.Equal(t, generation.StateSucceeded, gens.Recent[0].State)
}

func TestCancel(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()
	createBoard(t, h)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- do(t, h, http.MethodPost, "/api/generate/2/image", nil) }()

	require.Eventually(t, func() bool {
		return len(env.studio.Active()) == 1 && env.studio.Active()[0].PredictionID != ""
	}, 2*time.Second, 5*time.Millisecond)

	rec := do(t, h, http.MethodPost, "/api/cancel/2/image", nil)
	assertStatusCode(t, rec, http.StatusOK)
	var resp CancelResponse
	parseJSONResponse(t, rec, &resp)
	assert.True(t, resp.Canceled)

	select {
	case rec := <-done:
		assertStatusCode(t, rec, http.StatusOK)
		var out studio.Outcome
		parseJSONResponse(t, rec, &out)
		assert.True(t, out.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("generation was not canceled")
	}

	rec = do(t, h, http.MethodPost, "/api/cancel/2/image", nil)
	parseJSONResponse(t, rec, &resp)
	assert.False(t, resp.Canceled, "nothing left to cancel")
	assert.False(t, env.studio.Storyboard().Scenes[1].Image.Generating)
}

func TestModels(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()

	rec := do(t, h, http.MethodGet, "/api/models?category=video", nil)
	assertStatusCode(t, rec, http.StatusOK)
	var resp ModelsResponse
	parseJSONResponse(t, rec, &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "acme/kling", resp.Models[0].ID)

	rec = do(t, h, http.MethodGet, "/api/models", nil)
	parseJSONResponse(t, rec, &resp)
	assert.Equal(t, 2, resp.Count)

	rec = do(t, h, http.MethodGet, "/api/models?category=smell", nil)
	assertStatusCode(t, rec, http.StatusBadRequest)

	rec = do(t, h, http.MethodGet, "/api/models/search?q=fast", nil)
	assertStatusCode(t, rec, http.StatusOK)
	parseJSONResponse(t, rec, &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "acme/flux", resp.Models[0].ID)

	rec = do(t, h, http.MethodGet, "/api/models/search?q=", nil)
	assertStatusCode(t, rec, http.StatusBadRequest)

	// no catalog provider configured
	rec = do(t, h, http.MethodPost, "/api/models/sync", nil)
	assertStatusCode(t, rec, http.StatusUnprocessableEntity)
}

func TestUploadAndServeFile(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "frame.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("PNGDATA"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assertStatusCode(t, rec, http.StatusCreated)

	var up uploads.Upload
	parseJSONResponse(t, rec, &up)
	assert.True(t, up.Local)
	assert.Equal(t, "frame.png", up.Filename)

	rec = do(t, h, http.MethodGet, up.URL, nil)
	assertStatusCode(t, rec, http.StatusOK)
	assert.Equal(t, "PNGDATA", rec.Body.String())

	u, err := url.Parse(up.URL)
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, u.Path+"?sig=forged", nil)
	assertStatusCode(t, rec, http.StatusForbidden)

	rec = do(t, h, http.MethodGet, "/api/files/unknown?sig=", nil)
	assertStatusCode(t, rec, http.StatusForbidden)
}

func TestUpload_RequiresMultipart(t *testing.T) {
	env := newTestServer(t)
	rec := do(t, env.server.Handler(), http.MethodPost, "/api/uploads", map[string]string{"file": "x"})
	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestLogs(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()

	env.logger.Info("Catalog synced", "normalized", 12)
	env.logger.Error("Generation failed", "scene", 3)

	rec := do(t, h, http.MethodGet, "/api/logs?level=error", nil)
	assertStatusCode(t, rec, http.StatusOK)
	var logs []LogEntry
	parseJSONResponse(t, rec, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "Generation failed (scene=3)", logs[0].Message)

	rec = do(t, h, http.MethodGet, "/api/logs?search=catalog&limit=5", nil)
	parseJSONResponse(t, rec, &logs)
	require.Len(t, logs, 1)
}

func TestUnknownAPIPath(t *testing.T) {
	env := newTestServer(t)
	rec := do(t, env.server.Handler(), http.MethodGet, "/api/nope", nil)
	assertStatusCode(t, rec, http.StatusNotFound)

	rec = do(t, env.server.Handler(), http.MethodGet, "/", nil)
	assertStatusCode(t, rec, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "Storyboard Studio")
}

func TestSSE(t *testing.T) {
	env := newTestServer(t)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 32)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				events <- name
			}
		}
		close(events)
	}()

	// log events interleave with the studio's
	waitFor := func(want string) {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case name, ok := <-events:
				require.True(t, ok, "stream closed before %q", want)
				if name == want {
					return
				}
			case <-timeout:
				t.Fatalf("no %q event", want)
			}
		}
	}

	waitFor("snapshot")

	require.Eventually(t, func() bool { return env.state.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	_, err = env.studio.CreateStoryboard(ctx, "a fox", "", "")
	require.NoError(t, err)

	waitFor("storyboard")

	_, err = env.studio.UpdateScene(1, storyboard.ScenePatch{Script: strPtr("Sunrise")})
	require.NoError(t, err)
	waitFor("scene")
}

func strPtr(s string) *string { return &s }

func TestStoryboard_CreateRejectsUnknownFormat(t *testing.T) {
	env := newTestServer(t)
	rec := do(t, env.server.Handler(), http.MethodPost, "/api/storyboard", CreateStoryboardRequest{Prompt: "x", Format: "portrait"})
	assertStatusCode(t, rec, http.StatusBadRequest)
}
