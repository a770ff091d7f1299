package generation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/pterm"
)

// Key identifies one in-flight generation
type Key struct {
	SceneID int
	Media   media.Type
}

func (k Key) String() string {
	return fmt.Sprintf("scene-%d/%s", k.SceneID, k.Media)
}

// Handle is the live state of one generation attempt
type Handle struct {
	Key
	StartedAt time.Time

	token  string
	cancel context.CancelCauseFunc

	mu           sync.Mutex
	predictionID string
}

// SetPredictionID records the remote id once submit returns
func (h *Handle) SetPredictionID(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.predictionID = id
}

// PredictionID returns the remote id, "" before submit returned
func (h *Handle) PredictionID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.predictionID
}

// ActiveGeneration is the UI view of a handle
type ActiveGeneration struct {
	SceneID      int        `json:"sceneId"`
	Media        media.Type `json:"media"`
	PredictionID string     `json:"predictionId,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
}

// ErrCanceledByUser is the cancel cause recorded by Coordinator.Cancel
var ErrCanceledByUser = errors.New("generation canceled by user")

// Coordinator tracks active generations and cancels them
type Coordinator struct {
	provider Provider
	logger   *pterm.Logger

	mu      sync.Mutex
	handles map[Key]*Handle
}

// NewCoordinator creates a Coordinator that cancels remote jobs through provider
func NewCoordinator(provider Provider, logger *pterm.Logger) *Coordinator {
	return &Coordinator{
		provider: provider,
		logger:   logger,
		handles:  make(map[Key]*Handle),
	}
}

// Begin registers a generation for (sceneID, m) and returns the context the
// attempt must run under. A key that is already active is rejected.
func (c *Coordinator) Begin(ctx context.Context, sceneID int, m media.Type, token string) (context.Context, *Handle, error) {
	key := Key{SceneID: sceneID, Media: m}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.handles[key]; busy {
		return nil, nil, clierrors.ValidationError(
			fmt.Errorf("%s is already generating", key),
			"Cancel the running generation first.",
		)
	}

	hctx, cancel := context.WithCancelCause(ctx)
	h := &Handle{
		Key:       key,
		StartedAt: time.Now(),
		token:     token,
		cancel:    cancel,
	}
	c.handles[key] = h
	return hctx, h, nil
}

// Finish releases h after it resolved. A handle already replaced or canceled is ignored.
func (c *Coordinator) Finish(h *Handle) {
	if h == nil {
		return
	}
	c.mu.Lock()
	if c.handles[h.Key] == h {
		delete(c.handles, h.Key)
	}
	c.mu.Unlock()
	h.cancel(nil)
}

// Cancel stops the generation for (sceneID, m). The local context is canceled
// first, then the remote job is canceled best effort with the token the job was
// created with. Remote failures are logged, never returned. Returns false when
// nothing was active.
func (c *Coordinator) Cancel(ctx context.Context, sceneID int, m media.Type) bool {
	key := Key{SceneID: sceneID, Media: m}

	c.mu.Lock()
	h, ok := c.handles[key]
	delete(c.handles, key)
	c.mu.Unlock()

	if !ok {
		return false
	}

	h.cancel(ErrCanceledByUser)

	id := h.PredictionID()
	if id == "" || c.provider == nil {
		c.logger.Debug("Canceled before submit returned", "key", key)
		return true
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteCancelTimeout)
	defer cancel()
	if err := c.provider.Cancel(cctx, h.token, id); err != nil {
		c.logger.Warning("Remote cancel failed", "key", key, "id", id, "error", err)
	} else {
		c.logger.Info("Generation canceled", "key", key, "id", id)
	}
	return true
}

// CancelAll cancels every active generation
func (c *Coordinator) CancelAll(ctx context.Context) int {
	n := 0
	for _, a := range c.Active() {
		if c.Cancel(ctx, a.SceneID, a.Media) {
			n++
		}
	}
	return n
}

// IsActive reports whether (sceneID, m) is generating
func (c *Coordinator) IsActive(sceneID int, m media.Type) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handles[Key{SceneID: sceneID, Media: m}]
	return ok
}

// Active lists active generations ordered by scene, then media
func (c *Coordinator) Active() []ActiveGeneration {
	c.mu.Lock()
	out := make([]ActiveGeneration, 0, len(c.handles))
	for _, h := range c.handles {
		out = append(out, ActiveGeneration{
			SceneID:      h.SceneID,
			Media:        h.Media,
			PredictionID: h.PredictionID(),
			StartedAt:    h.StartedAt,
		})
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].SceneID != out[j].SceneID {
			return out[i].SceneID < out[j].SceneID
		}
		return out[i].Media < out[j].Media
	})
	return out
}
