package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/kubiyabot/storyboard/internal/catalog"
	"github.com/kubiyabot/storyboard/internal/config"
	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/generation"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/openai"
	"github.com/kubiyabot/storyboard/internal/replicate"
	"github.com/kubiyabot/storyboard/internal/storyboard"
	"github.com/kubiyabot/storyboard/internal/studio"
	"github.com/kubiyabot/storyboard/internal/version"
)

func (a *app) replicateClient(cfg *config.Config) *replicate.Client {
	return replicate.NewClient(cfg.ReplicateBaseURL, 0, "storyboard-cli/"+version.Version, a.logger)
}

func (a *app) registry(client *replicate.Client) *catalog.Registry {
	normalizer := catalog.NewNormalizer(catalog.NewRuleCategorizer(nil, nil))
	return catalog.NewRegistry(client, normalizer, 0, a.logger)
}

func syncOptions(cfg *config.Config) catalog.SyncOptions {
	return catalog.SyncOptions{Pages: cfg.SyncPages, Queries: cfg.SyncQueries}
}

// newStudio wires a Studio over the board kept in the data dir. A missing
// board file leaves the studio empty.
func (a *app) newStudio(cfg *config.Config, client *replicate.Client, registry *catalog.Registry, sink studio.EventSink) (*studio.Studio, error) {
	board, err := storyboard.LoadFile(a.fs, cfg.StoryboardPath())
	if err != nil {
		if !clierrors.IsType(err, clierrors.ErrorTypeValidation) {
			return nil, err
		}
		board = nil
	}

	opts := studio.Options{
		Store:    storyboard.NewStore(board),
		Registry: registry,
		Provider: replicate.NewProvider(client),
		Settings: cfg.Defaults,
		Sink:     sink,
		Logger:   a.logger,
		Lifecycle: generation.LifecycleConfig{
			PollInterval: cfg.PollInterval,
			MaxDuration:  cfg.MaxPollDuration,
		},
		DefaultToken:     cfg.ReplicateToken,
		MaxConcurrency:   cfg.MaxConcurrency,
		SubmitsPerSecond: cfg.SubmitsPerSecond,
	}
	if cfg.OpenAIAPIKey != "" {
		opts.Writer = openai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.LLMModel, a.logger)
	}
	return studio.New(opts), nil
}

// boardSaver writes the board back to the data dir after changes
type boardSaver struct {
	a    *app
	path string
	mu   sync.Mutex
}

func (a *app) boardSaver(cfg *config.Config) *boardSaver {
	return &boardSaver{a: a, path: cfg.StoryboardPath()}
}

func (b *boardSaver) save(data *storyboard.StoryboardData) error {
	if data == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return storyboard.SaveFile(b.a.fs, b.path, data)
}

// sink persists the board on every change s publishes
func (b *boardSaver) sink(s func() *studio.Studio) studio.EventSink {
	return studio.EventSinkFunc(func(e studio.Event) {
		switch e.Type {
		case studio.EventStoryboard, studio.EventScene:
		default:
			return
		}
		st := s()
		if st == nil {
			return
		}
		if err := b.save(st.Storyboard()); err != nil {
			b.a.logger.Warning("Could not save the storyboard", "path", b.path, "error", err)
		}
	})
}

// fanOut publishes every event to each sink in order
func fanOut(sinks ...studio.EventSink) studio.EventSink {
	return studio.EventSinkFunc(func(e studio.Event) {
		for _, s := range sinks {
			s.Publish(e)
		}
	})
}

// catalogFile keeps synced models between CLI runs
const catalogFile = "models.json"

func catalogPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, catalogFile)
}

// loadCatalog adds the cached models to registry; a missing cache is not an error
func (a *app) loadCatalog(cfg *config.Config, registry *catalog.Registry) error {
	raw, err := afero.ReadFile(a.fs, catalogPath(cfg))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read model cache: %w", err)
	}
	var models []catalog.ModelConfig
	if err := json.Unmarshal(raw, &models); err != nil {
		a.logger.Warning("Ignoring a corrupt model cache", "path", catalogPath(cfg), "error", err)
		return nil
	}
	registry.Add(models...)
	a.logger.Debug("Model cache loaded", "models", len(models))
	return nil
}

func (a *app) saveCatalog(cfg *config.Config, registry *catalog.Registry) error {
	raw, err := json.MarshalIndent(registry.List(""), "", "  ")
	if err != nil {
		return fmt.Errorf("encode model cache: %w", err)
	}
	if err := a.fs.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", cfg.DataDir, err)
	}
	return afero.WriteFile(a.fs, catalogPath(cfg), raw, 0o644)
}

// syncCatalog refreshes registry from the provider and updates the cache
func (a *app) syncCatalog(ctx context.Context, cfg *config.Config, registry *catalog.Registry) (catalog.SyncReport, error) {
	if cfg.ReplicateToken == "" {
		return catalog.SyncReport{}, clierrors.AuthErrorWithContext(
			fmt.Errorf("no Replicate token configured"),
			"Run 'storyboard init' or set REPLICATE_API_TOKEN.",
		)
	}
	spinner := a.progress.Spinner("Syncing the model catalog")
	spinner.Start()
	report, err := registry.Sync(ctx, cfg.ReplicateToken, syncOptions(cfg))
	if err != nil {
		spinner.Fail(err.Error())
		return report, err
	}
	spinner.Success(fmt.Sprintf("Synced %d models (%d image, %d video, %d audio)",
		report.Normalized, report.ByCategory[media.Image], report.ByCategory[media.Video], report.ByCategory[media.Audio]))
	if err := a.saveCatalog(cfg, registry); err != nil {
		a.logger.Warning("Could not save the model cache", "error", err)
	}
	return report, nil
}

// catalogFor returns a registry holding the cached models, synced first when
// force is set or the cache has nothing of category ("" means any)
func (a *app) catalogFor(ctx context.Context, cfg *config.Config, client *replicate.Client, category media.Type, force bool) (*catalog.Registry, error) {
	registry := a.registry(client)
	if err := a.loadCatalog(cfg, registry); err != nil {
		registry.Close()
		return nil, err
	}
	if force || len(registry.List(category)) == 0 {
		if _, err := a.syncCatalog(ctx, cfg, registry); err != nil {
			registry.Close()
			return nil, err
		}
	}
	return registry, nil
}
