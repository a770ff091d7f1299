package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubiyabot/storyboard/internal/catalog"
	"github.com/kubiyabot/storyboard/internal/config"
	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/formatter"
	"github.com/kubiyabot/storyboard/internal/pterm"
	"github.com/kubiyabot/storyboard/internal/storyboard"
	"github.com/kubiyabot/storyboard/internal/studio"
)

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain string
	}{
		{
			name:        "help command",
			args:        []string{"--help"},
			wantContain: "Available Commands:",
		},
		{
			name:        "lists the generate command",
			args:        []string{"--help"},
			wantContain: "generate",
		},
		{
			name:    "invalid command",
			args:    []string{"invalid"},
			wantErr: true,
		},
		{
			name:        "version",
			args:        []string{"version"},
			wantContain: "Storyboard Studio dev",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			got, err := ta.run(tt.args...)

			if (err != nil) != tt.wantErr {
				t.Errorf("command error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantContain != "" {
				assert.Contains(t, got, tt.wantContain)
			}
		})
	}
}

func loadBoard(t *testing.T, ta *testApp) *storyboard.StoryboardData {
	t.Helper()
	board, err := storyboard.LoadFile(ta.fs, "/data/storyboard.json")
	require.NoError(t, err)
	return board
}

func TestCreate(t *testing.T) {
	ta := newTestApp(t)

	out, err := ta.run("create", "a", "fox", "at", "dawn", "--format", "square")
	require.NoError(t, err)
	assert.Contains(t, out, "A fox wakes up")
	assert.Contains(t, ta.progress.String(), "2 scenes written")
	assert.Contains(t, ta.progress.String(), "==> Write the storyboard: DONE")

	board := loadBoard(t, ta)
	assert.Equal(t, "a fox at dawn", board.Prompt)
	assert.Equal(t, storyboard.FormatSquare, board.Format)
	require.Len(t, board.Scenes, 2)
	assert.Equal(t, "sleepy fox", board.Scenes[1].Image.Prompt)
	assert.Contains(t, ta.api.auth, "Bearer sk-test")
}

func TestCreate_Errors(t *testing.T) {
	ta := newTestApp(t)
	_, err := ta.run("create", "x", "--format", "portrait")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))

	ta.cfg.OpenAIAPIKey = ""
	_, err = ta.run("create", "x")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeConfig))

	exists, _ := afero.Exists(ta.fs, "/data/storyboard.json")
	assert.False(t, exists)
}

func TestShow(t *testing.T) {
	ta := newTestApp(t)
	_, err := ta.run("show")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation), "no board yet")

	_, err = ta.run("create", "a fox")
	require.NoError(t, err)

	out, err := ta.run("show", "-o", "json")
	require.NoError(t, err)
	var board storyboard.StoryboardData
	require.NoError(t, json.Unmarshal([]byte(out), &board))
	assert.Len(t, board.Scenes, 2)

	out, err = ta.run("show", "-o", "markdown")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# "))
	assert.Contains(t, out, "## Scene 2")

	out, err = ta.run("show")
	require.NoError(t, err)
	assert.Contains(t, out, "SCENE")
	assert.Contains(t, out, "Dawn over the hills")

	_, err = ta.run("show", "-o", "xml")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))
}

func TestGenerate_OneScene(t *testing.T) {
	ta := newTestApp(t)
	_, err := ta.run("create", "a fox", "--format", "landscape")
	require.NoError(t, err)

	out, err := ta.run("generate", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "https://cdn.example/p1.png")
	assert.Contains(t, ta.progress.String(), "Scene 1 image ready")

	in := ta.api.input("p1")
	assert.Equal(t, "misty hills", in["prompt"])
	assert.Contains(t, ta.api.auth, "Bearer r8_test")

	board := loadBoard(t, ta)
	assert.Equal(t, "https://cdn.example/p1.png", board.Scenes[0].Image.GeneratedURL)
	assert.False(t, board.Scenes[0].Image.Generating)

	_, err = ta.run("generate", "1", "--media", "video")
	require.NoError(t, err)
	in = ta.api.input("p2")
	assert.Equal(t, "https://cdn.example/p1.png", in["start_image"], "video starts from the scene image")
	assert.True(t, loadBoard(t, ta).Scenes[0].Video.Generated)
}

func TestGenerate_Errors(t *testing.T) {
	ta := newTestApp(t)

	tests := []struct {
		name string
		args []string
		want clierrors.ErrorType
	}{
		{"no board", []string{"generate", "1"}, clierrors.ErrorTypeValidation},
		{"neither scene nor all", []string{"generate"}, clierrors.ErrorTypeValidation},
		{"both scene and all", []string{"generate", "1", "--all"}, clierrors.ErrorTypeValidation},
		{"unknown media", []string{"generate", "1", "--media", "smell"}, clierrors.ErrorTypeValidation},
		{"unknown policy", []string{"generate", "--all", "--policy", "sometimes"}, clierrors.ErrorTypeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ta.run(tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.want, clierrors.TypeOf(err))
		})
	}

	_, err := ta.run("create", "a fox")
	require.NoError(t, err)

	_, err = ta.run("generate", "1", "--media", "video")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation), "video needs the scene image")

	_, err = ta.run("generate", "x")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))
}

func TestGenerate_All(t *testing.T) {
	ta := newTestApp(t)
	_, err := ta.run("create", "a fox")
	require.NoError(t, err)

	out, err := ta.run("generate", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "2 succeeded, 0 failed, 0 skipped")
	assert.Contains(t, ta.progress.String(), "Generating image: 2/2 (100%)")
	assert.Contains(t, ta.progress.String(), "==> Generate image for 2 scenes: DONE")

	out, err = ta.run("generate", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "0 succeeded, 0 failed, 2 skipped")

	ta.api.failFor = "fox stretches"
	out, err = ta.run("generate", "--all", "--media", "video")
	require.Error(t, err)
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypePredictionFailed))
	assert.Contains(t, out, "1 succeeded, 1 failed")
	assert.Contains(t, ta.progress.String(), "==> Generate video for 2 scenes: FAILED")

	board := loadBoard(t, ta)
	assert.True(t, board.Scenes[0].Video.Generated)
	assert.False(t, board.Scenes[1].Video.Generated)
	assert.NotEmpty(t, board.Scenes[1].Video.LastError)
}

func TestGenerate_StreamJSON(t *testing.T) {
	ta := newTestApp(t)
	_, err := ta.run("create", "a fox")
	require.NoError(t, err)

	out, err := ta.run("generate", "1", "--stream", "json")
	require.NoError(t, err)

	var states []string
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var e studio.Event
		require.NoError(t, json.Unmarshal([]byte(line), &e), line)
		if e.Type == studio.EventState {
			assert.Equal(t, 1, e.SceneID)
			states = append(states, string(e.State))
		}
	}
	require.NotEmpty(t, states)
	assert.Equal(t, "submitted", states[0])
	assert.Equal(t, "succeeded", states[len(states)-1])

	_, err = ta.run("generate", "1", "--stream", "xml")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))
}

func TestModels(t *testing.T) {
	ta := newTestApp(t)

	out, err := ta.run("models", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "acme/flux")
	assert.Contains(t, out, "acme/kling")

	out, err = ta.run("models", "list", "--category", "video", "-o", "json")
	require.NoError(t, err)
	var models []catalog.ModelConfig
	require.NoError(t, json.Unmarshal([]byte(out), &models))
	require.Len(t, models, 1)
	assert.Equal(t, "acme/kling", models[0].ID)

	_, err = ta.run("models", "list", "--category", "smell")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))

	out, err = ta.run("models", "show", "acme/flux")
	require.NoError(t, err)
	assert.Contains(t, out, "num_outputs")

	out, err = ta.run("models", "show", "acme/flux:v-pinned", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "version: v-pinned")

	_, err = ta.run("models", "show", "not-a-ref")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))
}

func TestModels_AudioNeedsSyncWithoutToken(t *testing.T) {
	ta := newTestApp(t)
	ta.cfg.ReplicateToken = ""

	_, err := ta.run("models", "list", "--category", "audio")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeAuth))
}

func TestInit_NonInteractive(t *testing.T) {
	ta := newTestApp(t)
	ta.configPath = "/cfg/config.yaml"

	out, err := ta.run("init", "--non-interactive", "--replicate-token", "r8_new", "--video-model", "acme/kling", "--port", "9100")
	require.NoError(t, err)
	assert.Contains(t, out, "/cfg/config.yaml")

	t.Setenv("REPLICATE_API_TOKEN", "")
	t.Setenv("STORYBOARD_REPLICATE_TOKEN", "")
	t.Setenv("STORYBOARD_PORT", "")
	t.Setenv("STORYBOARD_VIDEO_MODEL", "")
	t.Setenv("STORYBOARD_CONFIG", "")
	loaded, err := config.Load(ta.fs, "/cfg/config.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, "r8_new", loaded.ReplicateToken)
	assert.Equal(t, "acme/kling", loaded.Defaults.Video.Model)
	assert.Equal(t, 9100, loaded.Port)

	_, err = ta.run("init", "--non-interactive", "--image-model", "nope")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeConfig))
}

func TestRenderTable_PlainWhenNotATerminal(t *testing.T) {
	table := func(w *bytes.Buffer) *formatter.TableFormatter {
		tf := formatter.NewTable(w, "SCENE", "URL")
		tf.AddRow("1", "https://cdn/1.png")
		return tf
	}

	for name, ui := range map[string]*pterm.PTermManager{"no manager": nil, "enabled manager": {}} {
		t.Run(name, func(t *testing.T) {
			a := &app{ui: ui}
			var buf bytes.Buffer
			require.NoError(t, a.renderTable(&buf, table(&buf)))
			assert.Contains(t, buf.String(), "https://cdn/1.png")
			assert.NotContains(t, buf.String(), "|", "tabwriter columns, not a pterm grid")

			a.section(&buf, "image batch")
			assert.NotContains(t, buf.String(), "image batch")
		})
	}
}
