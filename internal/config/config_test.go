package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/params"
)

var envKeys = []string{
	"STORYBOARD_CONFIG", "STORYBOARD_REPLICATE_TOKEN", "REPLICATE_API_TOKEN",
	"STORYBOARD_OPENAI_API_KEY", "OPENAI_API_KEY", "STORYBOARD_DEBUG",
	"STORYBOARD_POLL_INTERVAL", "STORYBOARD_MAX_POLL_DURATION", "STORYBOARD_MAX_CONCURRENCY",
	"STORYBOARD_PORT", "STORYBOARD_DATA_DIR", "STORYBOARD_VIDEO_MODEL", "STORYBOARD_UPLOAD_SECRET",
}

// clearEnv unsets every variable Load reads, restoring them after the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

const fileYAML = `
replicate_api_token: r8_from_file
poll_interval: 3s
max_concurrency: 5
port: 9000
defaults:
  image:
    model: acme/flux
    params:
      num_inference_steps: 28
      aspect_ratio: "16:9"
  video:
    model: acme/kling
`

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		dotenv string
		env    map[string]string
		check  func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults only",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 2*time.Second, cfg.PollInterval)
				assert.Equal(t, 10*time.Minute, cfg.MaxPollDuration)
				assert.Equal(t, 3, cfg.MaxConcurrency)
				assert.Equal(t, "", cfg.Path)
				assert.NotEmpty(t, cfg.UploadSecret, "a per-process secret is generated")
			},
		},
		{
			name: "file values",
			file: fileYAML,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "r8_from_file", cfg.ReplicateToken)
				assert.Equal(t, 3*time.Second, cfg.PollInterval)
				assert.Equal(t, 5, cfg.MaxConcurrency)
				assert.Equal(t, 9000, cfg.Port)
				assert.Equal(t, "acme/flux", cfg.Defaults.Image.Model)
				assert.True(t, params.Number(28).Equal(cfg.Defaults.Image.Params["num_inference_steps"]))
				assert.Equal(t, "16:9", cfg.Defaults.Image.Params["aspect_ratio"].String())
				assert.Equal(t, "/cfg/config.yaml", cfg.Path)
			},
		},
		{
			name:   "dotenv beats the file",
			file:   fileYAML,
			dotenv: "REPLICATE_API_TOKEN=r8_from_dotenv\nSTORYBOARD_MAX_CONCURRENCY=7\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "r8_from_dotenv", cfg.ReplicateToken)
				assert.Equal(t, 7, cfg.MaxConcurrency)
				assert.Equal(t, 3*time.Second, cfg.PollInterval)
			},
		},
		{
			name:   "environment beats dotenv",
			file:   fileYAML,
			dotenv: "REPLICATE_API_TOKEN=r8_from_dotenv\n",
			env: map[string]string{
				"REPLICATE_API_TOKEN":      "r8_from_env",
				"STORYBOARD_DEBUG":         "true",
				"STORYBOARD_VIDEO_MODEL":   "acme/veo",
				"STORYBOARD_POLL_INTERVAL": "500ms",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "r8_from_env", cfg.ReplicateToken)
				assert.True(t, cfg.Debug)
				assert.Equal(t, "acme/veo", cfg.Defaults.Video.Model)
				assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
			},
		},
		{
			name: "storyboard prefixed token wins over the provider name",
			env: map[string]string{
				"REPLICATE_API_TOKEN":        "r8_generic",
				"STORYBOARD_REPLICATE_TOKEN": "r8_specific",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "r8_specific", cfg.ReplicateToken)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			fs := afero.NewMemMapFs()
			if tt.file != "" {
				require.NoError(t, afero.WriteFile(fs, "/cfg/config.yaml", []byte(tt.file), 0o600))
			}
			if tt.dotenv != "" {
				require.NoError(t, afero.WriteFile(fs, "/work/.env", []byte(tt.dotenv), 0o600))
			}

			cfg, err := Load(fs, "/cfg/config.yaml", "/work/.env")
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "broken yaml", file: "port: [1, 2"},
		{name: "bad duration", env: map[string]string{"STORYBOARD_POLL_INTERVAL": "soon"}},
		{name: "zero concurrency", file: "max_concurrency: -1"},
		{name: "port out of range", env: map[string]string{"STORYBOARD_PORT": "70000"}},
		{name: "max shorter than interval", file: "poll_interval: 1m\nmax_poll_duration: 30s"},
		{name: "bad model ref", file: "defaults:\n  audio:\n    model: just-a-name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			fs := afero.NewMemMapFs()
			if tt.file != "" {
				require.NoError(t, afero.WriteFile(fs, "/cfg/config.yaml", []byte(tt.file), 0o600))
			}
			_, err := Load(fs, "/cfg/config.yaml", "")
			require.Error(t, err)
			assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeConfig))
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	fs := afero.NewMemMapFs()

	cfg := Default()
	cfg.ReplicateToken = "r8_saved"
	cfg.MaxPollDuration = 4 * time.Minute
	cfg.Defaults.Audio.Model = "acme/mmaudio"
	cfg.Defaults.Audio.Params = params.Params{"duration": params.Int(8)}
	require.NoError(t, Save(fs, "/home/u/.config/storyboard/config.yaml", cfg))

	info, err := fs.Stat("/home/u/.config/storyboard/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())

	loaded, err := Load(fs, "/home/u/.config/storyboard/config.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, "r8_saved", loaded.ReplicateToken)
	assert.Equal(t, 4*time.Minute, loaded.MaxPollDuration)
	assert.Equal(t, "acme/mmaudio", loaded.Defaults.Audio.Model)
	assert.True(t, params.Number(8).Equal(loaded.Defaults.Audio.Params["duration"]))
}

func TestPublicHidesSecrets(t *testing.T) {
	cfg := Default()
	cfg.ReplicateToken = "r8_secret"
	pub := cfg.Public()
	assert.True(t, pub.HasReplicateToken)
	assert.False(t, pub.HasOpenAIKey)
	assert.Equal(t, "2s", pub.PollInterval)
}
