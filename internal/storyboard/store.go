package storyboard

import (
	"fmt"
	"sync"

	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/params"
)

// SlotPatch lists the slot fields to change; nil fields are left alone
type SlotPatch struct {
	Prompt         *string       `json:"prompt,omitempty"`
	CustomURL      *string       `json:"customUrl,omitempty"`
	CustomUploaded *bool         `json:"customUploaded,omitempty"`
	Model          *string       `json:"model,omitempty"`
	Params         params.Params `json:"params,omitempty"`
}

// ScenePatch lists the scene fields to change; nil fields are left alone
type ScenePatch struct {
	Script   *string    `json:"script,omitempty"`
	Image    *SlotPatch `json:"image,omitempty"`
	Video    *SlotPatch `json:"video,omitempty"`
	Audio    *SlotPatch `json:"audio,omitempty"`
	Position *Position  `json:"position,omitempty"`
}

func (p ScenePatch) slot(m media.Type) *SlotPatch {
	switch m {
	case media.Image:
		return p.Image
	case media.Video:
		return p.Video
	case media.Audio:
		return p.Audio
	}
	return nil
}

func (p *SlotPatch) apply(slot *MediaSlot) {
	if p == nil {
		return
	}
	if p.Prompt != nil {
		slot.Prompt = *p.Prompt
	}
	if p.CustomURL != nil {
		slot.CustomURL = *p.CustomURL
	}
	if p.CustomUploaded != nil {
		slot.CustomUploaded = *p.CustomUploaded
	}
	if p.Model != nil {
		slot.Model = *p.Model
	}
	if p.Params != nil {
		slot.Params = p.Params.Clone()
	}
}

// Store guards the current board. Every accessor returns copies.
type Store struct {
	mu   sync.RWMutex
	data *StoryboardData
}

// NewStore creates a store holding data (which may be nil)
func NewStore(data *StoryboardData) *Store {
	return &Store{data: data.Clone()}
}

// Replace swaps in a new board
func (s *Store) Replace(data *StoryboardData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data.Clone()
}

// Snapshot returns a copy of the board, nil when none was created yet
func (s *Store) Snapshot() *StoryboardData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// SceneIDs returns the scene ids in board order
func (s *Store) SceneIDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil
	}
	ids := make([]int, len(s.data.Scenes))
	for i, sc := range s.data.Scenes {
		ids[i] = sc.ID
	}
	return ids
}

// Scene returns a copy of one scene
func (s *Store) Scene(id int) (Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, err := s.find(id)
	if err != nil {
		return Scene{}, err
	}
	return sc.clone(), nil
}

// UpdateScene applies the set fields of patch to one scene. Other scenes are untouched.
func (s *Store) UpdateScene(id int, patch ScenePatch) (Scene, error) {
	return s.mutate(id, func(sc *Scene) error {
		if patch.Script != nil {
			sc.Script = *patch.Script
		}
		for _, m := range media.All {
			patch.slot(m).apply(sc.Slot(m))
		}
		if patch.Position != nil {
			p := *patch.Position
			sc.Position = &p
		}
		return nil
	})
}

// SetGenerating flips the in-flight flag of one slot
func (s *Store) SetGenerating(id int, m media.Type, generating bool) (Scene, error) {
	return s.mutate(id, func(sc *Scene) error {
		slot, err := slotOf(sc, m)
		if err != nil {
			return err
		}
		slot.Generating = generating
		if generating {
			slot.LastError = ""
		}
		return nil
	})
}

// SetGenerationResult stores a generated URL and marks the slot generated in
// one step. Already generated downstream slots become stale.
func (s *Store) SetGenerationResult(id int, m media.Type, url string) (Scene, error) {
	return s.mutate(id, func(sc *Scene) error {
		slot, err := slotOf(sc, m)
		if err != nil {
			return err
		}
		if url == "" {
			return clierrors.ValidationError(fmt.Errorf("generation result for scene %d has no URL", id), "")
		}
		slot.GeneratedURL = url
		slot.Generated = true
		slot.Stale = false
		slot.LastError = ""

		for d, ok := m.Downstream(); ok; d, ok = d.Downstream() {
			if down := sc.Slot(d); down.Generated {
				down.Stale = true
			}
		}
		return nil
	})
}

// SetGenerationError records the last failure message of one slot
func (s *Store) SetGenerationError(id int, m media.Type, msg string) (Scene, error) {
	return s.mutate(id, func(sc *Scene) error {
		slot, err := slotOf(sc, m)
		if err != nil {
			return err
		}
		slot.LastError = msg
		return nil
	})
}

func (s *Store) mutate(id int, fn func(sc *Scene) error) (Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, err := s.find(id)
	if err != nil {
		return Scene{}, err
	}
	if err := fn(sc); err != nil {
		return Scene{}, err
	}
	return sc.clone(), nil
}

// find must be called with s.mu held
func (s *Store) find(id int) (*Scene, error) {
	if s.data == nil {
		return nil, clierrors.ValidationError(fmt.Errorf("no storyboard has been created"), "Create a storyboard first.")
	}
	for i := range s.data.Scenes {
		if s.data.Scenes[i].ID == id {
			return &s.data.Scenes[i], nil
		}
	}
	return nil, clierrors.ValidationError(fmt.Errorf("scene %d not found", id), "")
}

func slotOf(sc *Scene, m media.Type) (*MediaSlot, error) {
	slot := sc.Slot(m)
	if slot == nil {
		return nil, clierrors.ValidationError(fmt.Errorf("unknown media type %q", m), "")
	}
	return slot, nil
}
