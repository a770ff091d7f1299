package storyboard

import (
	"strings"

	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/params"
)

// MediaSettings are the global defaults for one media type
type MediaSettings struct {
	Model  string        `json:"model,omitempty" yaml:"model,omitempty"`
	Params params.Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// Settings holds the global defaults per media type
type Settings struct {
	Image MediaSettings `json:"image" yaml:"image"`
	Video MediaSettings `json:"video" yaml:"video"`
	Audio MediaSettings `json:"audio" yaml:"audio"`
}

// For returns the defaults for m
func (s Settings) For(m media.Type) MediaSettings {
	switch m {
	case media.Image:
		return s.Image
	case media.Video:
		return s.Video
	case media.Audio:
		return s.Audio
	}
	return MediaSettings{}
}

// EffectiveParams is what a generation runs with after overrides are applied
type EffectiveParams struct {
	Model  string        `json:"model"`
	Params params.Params `json:"params"`
}

// ResolveEffectiveURL returns the asset shown for m: the upload when it is
// flagged and present, else the generated URL, else "".
func ResolveEffectiveURL(scene Scene, m media.Type) string {
	slot := scene.SlotOf(m)
	if slot.CustomUploaded && strings.TrimSpace(slot.CustomURL) != "" {
		return slot.CustomURL
	}
	return slot.GeneratedURL
}

// ResolveEffectiveParams layers the scene's model and parameter overrides over
// the global settings field by field.
func ResolveEffectiveParams(m media.Type, scene Scene, settings Settings) EffectiveParams {
	global := settings.For(m)
	slot := scene.SlotOf(m)

	eff := EffectiveParams{
		Model:  global.Model,
		Params: params.Params{}.Merge(global.Params).Merge(slot.Params),
	}
	if slot.Model != "" {
		eff.Model = slot.Model
	}
	return eff
}
