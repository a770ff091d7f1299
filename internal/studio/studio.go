package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kubiyabot/storyboard/internal/catalog"
	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/generation"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/params"
	"github.com/kubiyabot/storyboard/internal/pterm"
	"github.com/kubiyabot/storyboard/internal/sentry"
	"github.com/kubiyabot/storyboard/internal/storyboard"
)

const (
	DefaultMaxConcurrency   = 3
	DefaultSubmitsPerSecond = 2.0
)

// ScriptWriter expands an idea into scene script entries (the LLM provider)
type ScriptWriter interface {
	WriteScript(ctx context.Context, prompt string, format storyboard.Format, mode storyboard.Mode) ([]storyboard.ScriptEntry, error)
}

// Options wires a Studio
type Options struct {
	Store    *storyboard.Store
	Registry *catalog.Registry
	Provider generation.Provider
	Writer   ScriptWriter
	Settings storyboard.Settings
	Sink     EventSink
	Logger   *pterm.Logger

	Lifecycle generation.LifecycleConfig
	// DefaultToken is used when a call passes no provider token
	DefaultToken     string
	MaxConcurrency   int
	SubmitsPerSecond float64
}

// Studio is the interaction layer between the UI and the generation core
type Studio struct {
	store        *storyboard.Store
	registry     *catalog.Registry
	writer       ScriptWriter
	lifecycle    *generation.Lifecycle
	coordinator  *generation.Coordinator
	sink         EventSink
	logger       *pterm.Logger
	defaultToken string

	maxConcurrency int
	limiter        *rate.Limiter

	mu       sync.RWMutex
	settings storyboard.Settings
}

// New creates a Studio. A nil Store starts with an empty board.
func New(opts Options) *Studio {
	s := &Studio{
		store:          opts.Store,
		registry:       opts.Registry,
		writer:         opts.Writer,
		lifecycle:      generation.NewLifecycle(opts.Provider, opts.Lifecycle, opts.Logger),
		coordinator:    generation.NewCoordinator(opts.Provider, opts.Logger),
		sink:           opts.Sink,
		logger:         opts.Logger,
		defaultToken:   opts.DefaultToken,
		maxConcurrency: opts.MaxConcurrency,
		settings:       opts.Settings,
	}
	if s.store == nil {
		s.store = storyboard.NewStore(nil)
	}
	if s.registry == nil {
		s.registry = catalog.NewRegistry(nil, nil, 0, opts.Logger)
	}
	if s.sink == nil {
		s.sink = nopSink{}
	}
	if s.maxConcurrency <= 0 {
		s.maxConcurrency = DefaultMaxConcurrency
	}
	perSecond := opts.SubmitsPerSecond
	if perSecond <= 0 {
		perSecond = DefaultSubmitsPerSecond
	}
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	return s
}

// Store returns the board store
func (s *Studio) Store() *storyboard.Store { return s.store }

// Registry returns the model registry
func (s *Studio) Registry() *catalog.Registry { return s.registry }

// Settings returns the global per-media defaults
func (s *Studio) Settings() storyboard.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSettings(s.settings)
}

// SetSettings replaces the global per-media defaults
func (s *Studio) SetSettings(settings storyboard.Settings) {
	s.mu.Lock()
	s.settings = cloneSettings(settings)
	s.mu.Unlock()
	s.publish(Event{Type: EventSettings})
}

// CreateStoryboard asks the script writer for scenes and replaces the board.
// Generations still running for the old board are canceled.
func (s *Studio) CreateStoryboard(ctx context.Context, prompt string, format storyboard.Format, mode storyboard.Mode) (*storyboard.StoryboardData, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, clierrors.ValidationError(fmt.Errorf("storyboard prompt is empty"), "Describe the video you want to make.")
	}
	if s.writer == nil {
		return nil, clierrors.ConfigErrorWithContext(fmt.Errorf("no language model is configured"), "Set OPENAI_API_KEY.")
	}
	if format == "" {
		format = storyboard.FormatVertical
	}
	if mode == "" {
		mode = storyboard.ModeShort
	}
	if !format.Valid() {
		return nil, clierrors.ValidationError(fmt.Errorf("unknown format %q", format), "Use vertical, landscape or square.")
	}
	if !mode.Valid() {
		return nil, clierrors.ValidationError(fmt.Errorf("unknown mode %q", mode), "Use short or detailed.")
	}

	var data *storyboard.StoryboardData
	err := sentry.WithTransaction(ctx, "storyboard.create", func(ctx context.Context) error {
		entries, err := s.writer.WriteScript(ctx, prompt, format, mode)
		if err != nil {
			return err
		}
		data = storyboard.CreateFromScript(entries, prompt, format, mode)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if n := s.coordinator.CancelAll(ctx); n > 0 {
		s.logger.Info("Canceled generations of the previous storyboard", "count", n)
	}
	s.store.Replace(data)
	s.logger.Success("Storyboard created", "scenes", len(data.Scenes), "format", format, "mode", mode)
	s.publish(Event{Type: EventStoryboard, Storyboard: data.Clone()})
	return data, nil
}

// Load replaces the board with data read elsewhere (a saved file). Generations
// of the previous board are canceled first since scene ids are reused.
func (s *Studio) Load(ctx context.Context, data *storyboard.StoryboardData) {
	if n := s.coordinator.CancelAll(ctx); n > 0 {
		s.logger.Info("Canceled generations of the previous storyboard", "count", n)
	}
	s.store.Replace(data)
	s.publish(Event{Type: EventStoryboard, Storyboard: data.Clone()})
}

// Storyboard returns a copy of the board, nil before one was created
func (s *Studio) Storyboard() *storyboard.StoryboardData {
	return s.store.Snapshot()
}

// UpdateScene applies a user edit to one scene
func (s *Studio) UpdateScene(sceneID int, patch storyboard.ScenePatch) (storyboard.Scene, error) {
	sc, err := s.store.UpdateScene(sceneID, patch)
	if err != nil {
		return storyboard.Scene{}, err
	}
	s.publishScene(sc)
	return sc, nil
}

// Outcome describes one generation call
type Outcome struct {
	SceneID      int           `json:"sceneId"`
	Media        media.Type    `json:"media"`
	Model        string        `json:"model,omitempty"`
	PredictionID string        `json:"predictionId,omitempty"`
	URL          string        `json:"url,omitempty"`
	Elapsed      time.Duration `json:"elapsed,omitempty"`
	Skipped      bool          `json:"skipped,omitempty"`
	Canceled     bool          `json:"canceled,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Generate runs one generation for a scene slot. The in-flight flag is
// cleared on every path. A canceled generation returns a nil error with
// Outcome.Canceled set.
func (s *Studio) Generate(ctx context.Context, sceneID int, m media.Type, token string) (Outcome, error) {
	out := Outcome{SceneID: sceneID, Media: m}
	if !m.Valid() {
		return out, clierrors.ValidationError(fmt.Errorf("unknown media type %q", m), "Use image, video or audio.")
	}
	token = s.token(token)

	scene, err := s.store.Scene(sceneID)
	if err != nil {
		return out, err
	}

	roles, err := prerequisites(scene, m)
	if err != nil {
		return out, err
	}

	eff := storyboard.ResolveEffectiveParams(m, scene, s.Settings())
	cfg, err := s.resolveModel(ctx, token, m, eff.Model)
	if err != nil {
		return out, err
	}
	out.Model = cfg.ID

	input, err := generation.BuildInput(cfg, promptFor(scene, m), roles, s.overrides(cfg, m, eff.Params))
	if err != nil {
		return out, err
	}

	hctx, h, err := s.coordinator.Begin(ctx, sceneID, m, token)
	if err != nil {
		return out, err
	}
	defer s.coordinator.Finish(h)

	if sc, err := s.store.SetGenerating(sceneID, m, true); err == nil {
		s.publishScene(sc)
	}
	defer func() {
		// the board may have been replaced meanwhile; nothing to clear then
		if sc, err := s.store.SetGenerating(sceneID, m, false); err == nil {
			s.publishScene(sc)
		}
	}()

	span, hctx := sentry.StartSpan(hctx, "generation.run")
	s.logger.Info("Generating", "scene", sceneID, "media", m, "model", cfg.ID)

	res, err := s.lifecycle.Run(hctx, generation.Request{
		Endpoint: cfg.Endpoint,
		Version:  cfg.Version,
		Input:    input,
		Token:    token,
		OnSubmit: h.SetPredictionID,
		OnState: func(state generation.State, p generation.Prediction) {
			s.publish(Event{Type: EventState, SceneID: sceneID, Media: m, State: state, PredictionID: p.ID})
		},
	})
	sentry.FinishSpan(span, err)
	out.PredictionID = h.PredictionID()

	if err != nil {
		if clierrors.IsCancellation(err) {
			s.logger.Info("Generation canceled", "scene", sceneID, "media", m)
			out.Canceled = true
			return out, nil
		}
		out.Error = err.Error()
		if sc, serr := s.store.SetGenerationError(sceneID, m, err.Error()); serr == nil {
			s.publishScene(sc)
		}
		s.logger.Error("Generation failed", "scene", sceneID, "media", m, "model", cfg.ID, "error", err)
		sentry.CaptureError(err, map[string]string{
			"media":  string(m),
			"model":  cfg.ID,
			"status": clierrors.StatusOf(err),
		}, map[string]interface{}{
			"scene_id":      sceneID,
			"prediction_id": out.PredictionID,
		})
		return out, err
	}

	out.URL = res.URL
	out.Elapsed = res.Elapsed
	sc, err := s.store.SetGenerationResult(sceneID, m, res.URL)
	if err != nil {
		return out, err
	}
	s.publishScene(sc)
	s.logger.Success("Generated", "scene", sceneID, "media", m, "url", res.URL)
	return out, nil
}

// Cancel stops the generation running for (sceneID, m); false when none was active
func (s *Studio) Cancel(ctx context.Context, sceneID int, m media.Type) bool {
	return s.coordinator.Cancel(ctx, sceneID, m)
}

// CancelAll stops every running generation
func (s *Studio) CancelAll(ctx context.Context) int {
	return s.coordinator.CancelAll(ctx)
}

// Active lists the running generations
func (s *Studio) Active() []generation.ActiveGeneration {
	return s.coordinator.Active()
}

// prerequisites returns the upstream asset a generation consumes. Video needs
// the scene image and audio needs the scene video.
func prerequisites(scene storyboard.Scene, m media.Type) (generation.RoleURLs, error) {
	up, ok := m.Upstream()
	if !ok {
		return nil, nil
	}
	url := storyboard.ResolveEffectiveURL(scene, up)
	if url == "" {
		return nil, clierrors.ValidationError(
			fmt.Errorf("scene %d has no %s to generate %s from", scene.ID, up, m),
			fmt.Sprintf("Generate or upload the %s first.", up),
		)
	}
	role := generation.RoleImage
	if up == media.Video {
		role = generation.RoleVideo
	}
	return generation.RoleURLs{role: url}, nil
}

func promptFor(scene storyboard.Scene, m media.Type) string {
	if p := strings.TrimSpace(scene.SlotOf(m).Prompt); p != "" {
		return p
	}
	return strings.TrimSpace(scene.Script)
}

func (s *Studio) resolveModel(ctx context.Context, token string, m media.Type, ref string) (catalog.ModelConfig, error) {
	if ref == "" {
		cfg, ok := s.registry.Best(m)
		if !ok {
			return catalog.ModelConfig{}, clierrors.ModelConfigError(
				fmt.Errorf("no %s model is configured or synced", m))
		}
		return cfg, nil
	}
	cfg, err := s.registry.Resolve(ctx, token, ref)
	if err != nil {
		return catalog.ModelConfig{}, err
	}
	if cfg.Category != m {
		s.logger.Warning("Model category differs from the slot", "model", cfg.ID, "category", cfg.Category, "media", m)
	}
	return cfg, nil
}

// overrides puts the board format's aspect ratio under the user's parameters
func (s *Studio) overrides(cfg catalog.ModelConfig, m media.Type, user params.Params) params.Params {
	out := params.Params{}
	if m != media.Audio {
		if _, ok := cfg.ParamTypes["aspect_ratio"]; ok {
			if data := s.store.Snapshot(); data != nil && data.Format != "" {
				out["aspect_ratio"] = params.String(data.Format.AspectRatio())
			}
		}
	}
	return out.Merge(user)
}

func (s *Studio) token(token string) string {
	if t := strings.TrimSpace(token); t != "" {
		return t
	}
	return s.defaultToken
}

func (s *Studio) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.sink.Publish(e)
}

func (s *Studio) publishScene(sc storyboard.Scene) {
	s.publish(Event{Type: EventScene, SceneID: sc.ID, Scene: &sc})
}

func cloneSettings(in storyboard.Settings) storyboard.Settings {
	out := in
	for _, m := range media.All {
		src := in.For(m).Params
		if src == nil {
			continue
		}
		switch m {
		case media.Image:
			out.Image.Params = src.Clone()
		case media.Video:
			out.Video.Params = src.Clone()
		case media.Audio:
			out.Audio.Params = src.Clone()
		}
	}
	return out
}

// recovered turns a panic value into an error
func recovered(v interface{}) error {
	if err, ok := v.(error); ok {
		return clierrors.RuntimeError(fmt.Errorf("generation panicked: %w", err))
	}
	return clierrors.RuntimeError(errors.New(fmt.Sprint("generation panicked: ", v)))
}
