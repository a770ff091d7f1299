package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/kubiyabot/storyboard/internal/cache"
	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/pterm"
)

// Lister is the catalog listing provider
type Lister interface {
	ListModels(ctx context.Context, token, cursor string) (Page, error)
	SearchModels(ctx context.Context, token, query string) (Page, error)
	GetModel(ctx context.Context, token, owner, name string) (RawEntry, error)
}

// DefaultSearchTTL is how long search results are reused
const DefaultSearchTTL = 10 * time.Minute

// DefaultSyncQueries seed the catalog with the media types the studio needs
var DefaultSyncQueries = []string{"text-to-image", "image-to-video", "video-to-audio", "text-to-speech"}

// SyncOptions controls a catalog pull
type SyncOptions struct {
	// Pages is how many listing pages to walk; 0 skips the listing
	Pages int
	// Queries are searched concurrently with the listing
	Queries []string
}

// SyncReport summarizes a sync
type SyncReport struct {
	Fetched    int                `json:"fetched"`
	Normalized int                `json:"normalized"`
	ByCategory map[media.Type]int `json:"byCategory"`
}

// Registry holds normalized model configs in memory
type Registry struct {
	lister     Lister
	normalizer *Normalizer
	logger     *pterm.Logger
	searches   *cache.Cache[[]ModelConfig]

	mu     sync.RWMutex
	models map[string]ModelConfig
}

// NewRegistry creates a registry backed by lister. lister may be nil for an
// offline registry populated with Add.
func NewRegistry(lister Lister, normalizer *Normalizer, searchTTL time.Duration, logger *pterm.Logger) *Registry {
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}
	if searchTTL <= 0 {
		searchTTL = DefaultSearchTTL
	}
	return &Registry{
		lister:     lister,
		normalizer: normalizer,
		logger:     logger,
		searches:   cache.New[[]ModelConfig](searchTTL),
		models:     make(map[string]ModelConfig),
	}
}

// Close stops the search cache
func (r *Registry) Close() {
	r.searches.Stop()
}

// Add stores configs, replacing any with the same id
func (r *Registry) Add(cfgs ...ModelConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cfg := range cfgs {
		r.models[cfg.ID] = cfg
	}
}

// Get returns the config with the given "owner/name" id
func (r *Registry) Get(id string) (ModelConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.models[id]
	return cfg, ok
}

// Len returns the number of configs held
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// List returns configs of one category (all when category is empty), best first
func (r *Registry) List(category media.Type) []ModelConfig {
	r.mu.RLock()
	all := lo.Values(r.models)
	r.mu.RUnlock()

	if category != "" {
		all = lo.Filter(all, func(cfg ModelConfig, _ int) bool { return cfg.Category == category })
	}
	sortByQuality(all)
	return all
}

// Best returns the highest ranked config of a category
func (r *Registry) Best(category media.Type) (ModelConfig, bool) {
	list := r.List(category)
	if len(list) == 0 {
		return ModelConfig{}, false
	}
	return list[0], true
}

// Resolve finds a config by "owner/name[:version]", fetching and normalizing it
// from the provider when it is not held yet.
func (r *Registry) Resolve(ctx context.Context, token, ref string) (ModelConfig, error) {
	owner, name, version, ok := ParseModelRef(ref)
	if !ok {
		return ModelConfig{}, clierrors.ValidationError(
			fmt.Errorf("invalid model reference %q", ref),
			"Use the form owner/name or owner/name:version.",
		)
	}

	cfg, found := r.Get(owner + "/" + name)
	if !found {
		if r.lister == nil {
			return ModelConfig{}, clierrors.ModelConfigError(fmt.Errorf("model %s/%s is not in the catalog", owner, name))
		}
		entry, err := r.lister.GetModel(ctx, token, owner, name)
		if err != nil {
			return ModelConfig{}, err
		}
		cfg, found = r.normalizer.Normalize(entry)
		if !found {
			return ModelConfig{}, clierrors.ModelConfigError(
				fmt.Errorf("model %s/%s has no usable prompt input or output schema", owner, name))
		}
		r.Add(cfg)
		r.logger.Debug("Resolved model", "model", cfg.ID, "category", cfg.Category)
	}

	if version != "" {
		cfg.Version = version
	}
	return cfg, nil
}

// Sync walks listing pages and search queries concurrently and stores every
// config that passes normalization.
func (r *Registry) Sync(ctx context.Context, token string, opts SyncOptions) (SyncReport, error) {
	if r.lister == nil {
		return SyncReport{}, clierrors.ConfigError(fmt.Errorf("catalog provider is not configured"))
	}

	var (
		mu      sync.Mutex
		fetched []RawEntry
	)
	collect := func(entries []RawEntry) {
		mu.Lock()
		fetched = append(fetched, entries...)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	if opts.Pages > 0 {
		g.Go(func() error {
			cursor := ""
			for i := 0; i < opts.Pages; i++ {
				page, err := r.lister.ListModels(gctx, token, cursor)
				if err != nil {
					return fmt.Errorf("list models page %d: %w", i+1, err)
				}
				collect(page.Results)
				if page.Next == "" {
					return nil
				}
				cursor = page.Next
			}
			return nil
		})
	}

	for _, q := range lo.Uniq(opts.Queries) {
		query := strings.TrimSpace(q)
		if query == "" {
			continue
		}
		g.Go(func() error {
			page, err := r.lister.SearchModels(gctx, token, query)
			if err != nil {
				return fmt.Errorf("search models %q: %w", query, err)
			}
			collect(page.Results)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return SyncReport{}, err
	}

	unique := lo.UniqBy(fetched, func(e RawEntry) string { return e.ID() })
	cfgs := r.normalizer.NormalizePage(unique)
	r.Add(cfgs...)

	report := SyncReport{
		Fetched:    len(unique),
		Normalized: len(cfgs),
		ByCategory: lo.CountValuesBy(cfgs, func(cfg ModelConfig) media.Type { return cfg.Category }),
	}
	r.logger.Info("Catalog synced", "fetched", report.Fetched, "normalized", report.Normalized)
	return report, nil
}

// Search runs a free-text catalog search. Results are cached per query.
func (r *Registry) Search(ctx context.Context, token, query string) ([]ModelConfig, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, clierrors.ValidationError(fmt.Errorf("search query is empty"), "")
	}

	key := strings.ToLower(query)
	if cached, ok := r.searches.Get(key); ok {
		return cached, nil
	}

	if r.lister == nil {
		return r.searchLocal(key), nil
	}

	page, err := r.lister.SearchModels(ctx, token, query)
	if err != nil {
		return nil, err
	}
	cfgs := r.normalizer.NormalizePage(page.Results)
	r.Add(cfgs...)
	r.searches.Set(key, cfgs)
	return cfgs, nil
}

func (r *Registry) searchLocal(query string) []ModelConfig {
	matches := lo.Filter(r.List(""), func(cfg ModelConfig, _ int) bool {
		return strings.Contains(strings.ToLower(cfg.ID), query) ||
			strings.Contains(strings.ToLower(cfg.Description), query)
	})
	return matches
}

func sortByQuality(cfgs []ModelConfig) {
	sort.SliceStable(cfgs, func(i, j int) bool {
		if cfgs[i].QualityScore != cfgs[j].QualityScore {
			return cfgs[i].QualityScore > cfgs[j].QualityScore
		}
		return cfgs[i].ID < cfgs[j].ID
	})
}
