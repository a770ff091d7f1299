package storyboard

import (
	"time"

	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/params"
)

// Position is a scene card's place on the board canvas
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MediaSlot holds one media type of a scene
type MediaSlot struct {
	Prompt string `json:"prompt"`

	GeneratedURL string `json:"generatedUrl,omitempty"`
	// CustomURL is a user upload; it is shown instead of the generated asset
	// while CustomUploaded is set
	CustomURL      string `json:"customUrl,omitempty"`
	CustomUploaded bool   `json:"customUploaded"`

	// Model and Params override the global settings for this slot
	Model  string        `json:"model,omitempty"`
	Params params.Params `json:"params,omitempty"`

	Generated  bool `json:"generated"`
	Generating bool `json:"generating"`
	// Stale is set when the upstream asset was regenerated after this one
	Stale bool `json:"stale"`

	LastError string `json:"lastError,omitempty"`
}

// Scene is one beat of the storyboard
type Scene struct {
	ID       int       `json:"id"`
	Script   string    `json:"script"`
	Image    MediaSlot `json:"image"`
	Video    MediaSlot `json:"video"`
	Audio    MediaSlot `json:"audio"`
	Position *Position `json:"position,omitempty"`
}

// Slot returns the slot for m, nil for an unknown media type
func (s *Scene) Slot(m media.Type) *MediaSlot {
	switch m {
	case media.Image:
		return &s.Image
	case media.Video:
		return &s.Video
	case media.Audio:
		return &s.Audio
	}
	return nil
}

// SlotOf is the value form of Slot
func (s Scene) SlotOf(m media.Type) MediaSlot {
	if slot := s.Slot(m); slot != nil {
		return *slot
	}
	return MediaSlot{}
}

func (s Scene) clone() Scene {
	out := s
	for _, m := range media.All {
		slot := out.Slot(m)
		if slot.Params != nil {
			slot.Params = slot.Params.Clone()
		}
	}
	if s.Position != nil {
		p := *s.Position
		out.Position = &p
	}
	return out
}

// Format is the target frame shape
type Format string

const (
	FormatVertical  Format = "vertical"
	FormatLandscape Format = "landscape"
	FormatSquare    Format = "square"
)

// Valid reports whether f is a known format
func (f Format) Valid() bool {
	return f == FormatVertical || f == FormatLandscape || f == FormatSquare
}

// AspectRatio returns the model aspect_ratio value for f
func (f Format) AspectRatio() string {
	switch f {
	case FormatLandscape:
		return "16:9"
	case FormatSquare:
		return "1:1"
	}
	return "9:16"
}

// Mode controls how much the language model writes
type Mode string

const (
	ModeShort    Mode = "short"
	ModeDetailed Mode = "detailed"
)

func (m Mode) Valid() bool {
	return m == ModeShort || m == ModeDetailed
}

// SceneRange returns the scene count the language model is asked for
func (m Mode) SceneRange() (low, high int) {
	if m == ModeDetailed {
		return 6, 10
	}
	return 3, 5
}

// StoryboardData is the whole board. A new generation replaces it.
type StoryboardData struct {
	Prompt    string    `json:"prompt"`
	Format    Format    `json:"format"`
	Mode      Mode      `json:"mode"`
	Scenes    []Scene   `json:"scenes"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone deep copies the board
func (d *StoryboardData) Clone() *StoryboardData {
	if d == nil {
		return nil
	}
	out := *d
	out.Scenes = make([]Scene, len(d.Scenes))
	for i, s := range d.Scenes {
		out.Scenes[i] = s.clone()
	}
	return &out
}
