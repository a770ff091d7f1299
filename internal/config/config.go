package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/kubiyabot/storyboard/internal/catalog"
	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/storyboard"
)

// Config is the merged runtime configuration
type Config struct {
	ReplicateToken   string `yaml:"replicate_api_token,omitempty"`
	OpenAIAPIKey     string `yaml:"openai_api_key,omitempty"`
	ReplicateBaseURL string `yaml:"replicate_base_url,omitempty"`
	OpenAIBaseURL    string `yaml:"openai_base_url,omitempty"`
	LLMModel         string `yaml:"llm_model,omitempty"`
	Debug            bool   `yaml:"debug,omitempty"`

	PollInterval     time.Duration `yaml:"poll_interval,omitempty"`
	MaxPollDuration  time.Duration `yaml:"max_poll_duration,omitempty"`
	MaxConcurrency   int           `yaml:"max_concurrency,omitempty"`
	SubmitsPerSecond float64       `yaml:"submits_per_second,omitempty"`

	UploadSecret string        `yaml:"upload_secret,omitempty"`
	UploadTTL    time.Duration `yaml:"upload_ttl,omitempty"`

	DataDir string `yaml:"data_dir,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`

	SyncPages   int      `yaml:"sync_pages,omitempty"`
	SyncQueries []string `yaml:"sync_queries,omitempty"`

	Defaults storyboard.Settings `yaml:"defaults,omitempty"`

	// Path is the config file the values were read from, "" when none existed
	Path string `yaml:"-"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ReplicateBaseURL: "https://api.replicate.com/v1",
		OpenAIBaseURL:    "https://api.openai.com/v1",
		LLMModel:         "gpt-4o-mini",
		PollInterval:     2 * time.Second,
		MaxPollDuration:  10 * time.Minute,
		MaxConcurrency:   3,
		SubmitsPerSecond: 2,
		UploadTTL:        time.Hour,
		DataDir:          defaultDataDir(),
		Host:             "127.0.0.1",
		Port:             8420,
		SyncPages:        2,
		SyncQueries:      append([]string(nil), catalog.DefaultSyncQueries...),
	}
}

// DefaultPath is ~/.config/storyboard/config.yaml unless STORYBOARD_CONFIG is set
func DefaultPath() string {
	if p := os.Getenv("STORYBOARD_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.TempDir(), ".config")
	}
	return filepath.Join(dir, "storyboard", "config.yaml")
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".storyboard")
	}
	return filepath.Join(os.TempDir(), "storyboard")
}

// Load merges, lowest priority first: defaults, the YAML file at path ("" uses
// DefaultPath), envFile (a .env file, skipped when "" or missing), then the
// process environment. The result is validated.
func Load(fs afero.Fs, path, envFile string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	raw, err := afero.ReadFile(fs, path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, clierrors.ConfigErrorWithContext(fmt.Errorf("parse %s: %w", path, err), "Fix the YAML or run 'storyboard init' to rewrite it.")
		}
		cfg.Path = path
	case !os.IsNotExist(err):
		return nil, clierrors.ConfigError(fmt.Errorf("read %s: %w", path, err))
	}

	dotenv := map[string]string{}
	if envFile != "" {
		if raw, err := afero.ReadFile(fs, envFile); err == nil {
			dotenv, err = godotenv.Parse(bytes.NewReader(raw))
			if err != nil {
				return nil, clierrors.ConfigError(fmt.Errorf("parse %s: %w", envFile, err))
			}
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if cfg.UploadSecret == "" {
		// URLs signed with a per-process secret die with the process
		cfg.UploadSecret = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	str(&c.ReplicateToken, "STORYBOARD_REPLICATE_TOKEN", "REPLICATE_API_TOKEN")
	str(&c.OpenAIAPIKey, "STORYBOARD_OPENAI_API_KEY", "OPENAI_API_KEY")
	str(&c.ReplicateBaseURL, "STORYBOARD_REPLICATE_URL")
	str(&c.OpenAIBaseURL, "STORYBOARD_OPENAI_URL")
	str(&c.LLMModel, "STORYBOARD_LLM_MODEL")
	str(&c.UploadSecret, "STORYBOARD_UPLOAD_SECRET")
	str(&c.DataDir, "STORYBOARD_DATA_DIR")
	str(&c.Host, "STORYBOARD_HOST")
	str(&c.Defaults.Image.Model, "STORYBOARD_IMAGE_MODEL")
	str(&c.Defaults.Video.Model, "STORYBOARD_VIDEO_MODEL")
	str(&c.Defaults.Audio.Model, "STORYBOARD_AUDIO_MODEL")

	parsers := []struct {
		key   string
		parse func(string) error
	}{
		{"STORYBOARD_DEBUG", func(v string) (err error) { c.Debug, err = strconv.ParseBool(v); return }},
		{"STORYBOARD_POLL_INTERVAL", func(v string) (err error) { c.PollInterval, err = time.ParseDuration(v); return }},
		{"STORYBOARD_MAX_POLL_DURATION", func(v string) (err error) { c.MaxPollDuration, err = time.ParseDuration(v); return }},
		{"STORYBOARD_MAX_CONCURRENCY", func(v string) (err error) { c.MaxConcurrency, err = strconv.Atoi(v); return }},
		{"STORYBOARD_SUBMITS_PER_SECOND", func(v string) (err error) { c.SubmitsPerSecond, err = strconv.ParseFloat(v, 64); return }},
		{"STORYBOARD_UPLOAD_TTL", func(v string) (err error) { c.UploadTTL, err = time.ParseDuration(v); return }},
		{"STORYBOARD_PORT", func(v string) (err error) { c.Port, err = strconv.Atoi(v); return }},
		{"STORYBOARD_SYNC_PAGES", func(v string) (err error) { c.SyncPages, err = strconv.Atoi(v); return }},
	}
	for _, p := range parsers {
		v, ok := lookup(p.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := p.parse(strings.TrimSpace(v)); err != nil {
			return clierrors.ConfigError(fmt.Errorf("%s=%q: %w", p.key, v, err))
		}
	}
	return nil
}

// Validate reports the first invalid value
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(c.PollInterval > 0, "poll_interval must be positive, got %s", c.PollInterval)
	check(c.MaxPollDuration >= c.PollInterval, "max_poll_duration (%s) must not be shorter than poll_interval (%s)", c.MaxPollDuration, c.PollInterval)
	check(c.MaxConcurrency >= 1 && c.MaxConcurrency <= 32, "max_concurrency must be between 1 and 32, got %d", c.MaxConcurrency)
	check(c.SubmitsPerSecond > 0, "submits_per_second must be positive, got %v", c.SubmitsPerSecond)
	check(c.UploadTTL > 0, "upload_ttl must be positive, got %s", c.UploadTTL)
	check(c.Port > 0 && c.Port < 65536, "port must be between 1 and 65535, got %d", c.Port)
	check(c.SyncPages >= 0, "sync_pages must not be negative, got %d", c.SyncPages)
	check(c.DataDir != "", "data_dir must be set")
	for name, raw := range map[string]string{"replicate_base_url": c.ReplicateBaseURL, "openai_base_url": c.OpenAIBaseURL} {
		u, err := url.Parse(raw)
		check(err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "", "%s must be an http(s) URL, got %q", name, raw)
	}
	for _, m := range media.All {
		if ref := c.Defaults.For(m).Model; ref != "" {
			_, _, _, ok := catalog.ParseModelRef(ref)
			check(ok, "defaults.%s.model must look like owner/name[:version], got %q", m, ref)
		}
	}

	if len(problems) > 0 {
		return clierrors.ConfigErrorWithContext(
			fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; ")),
			"Check your config file and STORYBOARD_* environment variables.",
		)
	}
	return nil
}

// Save writes cfg as YAML, readable by the owner only since it holds tokens
func Save(fs afero.Fs, path string, cfg *Config) error {
	if path == "" {
		path = DefaultPath()
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(fs, path, raw, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Addr is the web UI listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoryboardPath is where the CLI keeps the current board
func (c *Config) StoryboardPath() string {
	return filepath.Join(c.DataDir, storyboard.DefaultFileName)
}

// UploadDir holds uploads made without a provider token
func (c *Config) UploadDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// Public is the configuration shown to the UI; secrets are reduced to flags
type Public struct {
	HasReplicateToken bool                `json:"hasReplicateToken"`
	HasOpenAIKey      bool                `json:"hasOpenAIKey"`
	LLMModel          string              `json:"llmModel"`
	PollInterval      string              `json:"pollInterval"`
	MaxPollDuration   string              `json:"maxPollDuration"`
	MaxConcurrency    int                 `json:"maxConcurrency"`
	SubmitsPerSecond  float64             `json:"submitsPerSecond"`
	Defaults          storyboard.Settings `json:"defaults"`
}

// Public returns the UI view of c
func (c *Config) Public() Public {
	return Public{
		HasReplicateToken: c.ReplicateToken != "",
		HasOpenAIKey:      c.OpenAIAPIKey != "",
		LLMModel:          c.LLMModel,
		PollInterval:      c.PollInterval.String(),
		MaxPollDuration:   c.MaxPollDuration.String(),
		MaxConcurrency:    c.MaxConcurrency,
		SubmitsPerSecond:  c.SubmitsPerSecond,
		Defaults:          c.Defaults,
	}
}
