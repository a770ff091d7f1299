package storyboard

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	clierrors "github.com/kubiyabot/storyboard/internal/errors"
)

const (
	gridColumns  = 4
	gridSpacingX = 320
	gridSpacingY = 420
	gridOrigin   = 40
)

// ScriptEntry is one scene as written by the language model
type ScriptEntry struct {
	Scene       string `json:"scene"`
	ImagePrompt string `json:"scene_image_prompt"`
	VideoPrompt string `json:"scene_video_prompt"`
	SoundPrompt string `json:"scene_sound_prompt"`
}

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\s*```$")

// ParseScript decodes a language model response of the form
// {"scenes": [{"scene", "scene_image_prompt", "scene_video_prompt", "scene_sound_prompt"}]}.
// A surrounding markdown code fence is stripped first.
func ParseScript(content string) ([]ScriptEntry, error) {
	body := strings.TrimSpace(content)
	if m := codeFence.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}

	if !gjson.Valid(body) {
		return nil, clierrors.StoryboardFormatError(fmt.Errorf("response is not valid JSON"))
	}

	scenes := gjson.Get(body, "scenes")
	if !scenes.IsArray() {
		return nil, clierrors.StoryboardFormatError(fmt.Errorf("response has no scenes array"))
	}

	var entries []ScriptEntry
	for _, item := range scenes.Array() {
		if !item.IsObject() {
			continue
		}
		entry := ScriptEntry{
			Scene:       strings.TrimSpace(item.Get("scene").String()),
			ImagePrompt: strings.TrimSpace(item.Get("scene_image_prompt").String()),
			VideoPrompt: strings.TrimSpace(item.Get("scene_video_prompt").String()),
			SoundPrompt: strings.TrimSpace(item.Get("scene_sound_prompt").String()),
		}
		if entry == (ScriptEntry{}) {
			continue
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, clierrors.StoryboardFormatError(fmt.Errorf("scenes array is empty"))
	}
	return entries, nil
}

// CreateFromScript builds a fresh board. Scene ids start at 1 and every scene
// gets its own grid cell.
func CreateFromScript(entries []ScriptEntry, prompt string, format Format, mode Mode) *StoryboardData {
	if format == "" {
		format = FormatVertical
	}
	if mode == "" {
		mode = ModeShort
	}

	data := &StoryboardData{
		Prompt:    prompt,
		Format:    format,
		Mode:      mode,
		Scenes:    make([]Scene, len(entries)),
		CreatedAt: time.Now().UTC(),
	}
	for i, e := range entries {
		data.Scenes[i] = Scene{
			ID:     i + 1,
			Script: e.Scene,
			Image:  MediaSlot{Prompt: e.ImagePrompt},
			Video:  MediaSlot{Prompt: e.VideoPrompt},
			Audio:  MediaSlot{Prompt: e.SoundPrompt},
			Position: &Position{
				X: float64(gridOrigin + (i%gridColumns)*gridSpacingX),
				Y: float64(gridOrigin + (i/gridColumns)*gridSpacingY),
			},
		}
	}
	return data
}
