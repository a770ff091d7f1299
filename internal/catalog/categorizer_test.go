package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kubiyabot/storyboard/internal/media"
)

func TestRuleCategorizer_Categorize(t *testing.T) {
	tests := []struct {
		name       string
		entry      RawEntry
		wantOK     bool
		wantMedia  media.Type
		wantConfid float64
	}{
		{
			name:   "no prompt field",
			entry:  newEntry("acme", "upscaler", withSchema(`{"image": {"type": "string", "format": "uri"}}`, uriOutput)),
			wantOK: false,
		},
		{
			name:   "only a negative prompt",
			entry:  newEntry("acme", "neg", withSchema(`{"negative_prompt": {"type": "string"}}`, uriOutput)),
			wantOK: false,
		},
		{
			name:   "object output",
			entry:  newEntry("acme", "captioner", withSchema(promptOnlyInputs, `{"type": "object"}`)),
			wantOK: false,
		},
		{
			name:   "plain string output",
			entry:  newEntry("acme", "llm", withSchema(promptOnlyInputs, `{"type": "string"}`)),
			wantOK: false,
		},
		{
			name:   "missing schema",
			entry:  newEntry("acme", "ghost", withoutSchema()),
			wantOK: false,
		},
		{
			name: "video extension wins over audio description",
			entry: newEntry("acme", "clips",
				withDescription("Makes music and voice tracks for your clips"),
				withExampleOutput(`"https://cdn.example.com/out.mp4"`)),
			wantOK: true, wantMedia: media.Video, wantConfid: 0.9,
		},
		{
			name:   "audio extension",
			entry:  newEntry("acme", "beats", withExampleOutput(`"https://cdn.example.com/out.wav"`)),
			wantOK: true, wantMedia: media.Audio, wantConfid: 0.9,
		},
		{
			name: "first string of array output",
			entry: newEntry("acme", "painter",
				withSchema(promptOnlyInputs, arrayOutput),
				withDescription("Turns words into a motion picture"),
				withExampleOutput(`["https://cdn.example.com/0.png", "https://cdn.example.com/1.png"]`)),
			wantOK: true, wantMedia: media.Image, wantConfid: 0.9,
		},
		{
			name:   "audio keyword",
			entry:  newEntry("acme", "composer", withDescription("Generate music from a text description")),
			wantOK: true, wantMedia: media.Audio, wantConfid: 0.8,
		},
		{
			name:   "audio keyword in name",
			entry:  newEntry("acme", "fast-tts"),
			wantOK: true, wantMedia: media.Audio, wantConfid: 0.8,
		},
		{
			name:   "video keyword",
			entry:  newEntry("acme", "animator", withDescription("Animate a still picture into a short clip")),
			wantOK: true, wantMedia: media.Video, wantConfid: 0.7,
		},
		{
			name: "start_image input implies video",
			entry: newEntry("acme", "frames", withSchema(
				`{"prompt": {"type": "string"}, "start_image": {"type": "string", "format": "uri"}}`, uriOutput)),
			wantOK: true, wantMedia: media.Video, wantConfid: 0.7,
		},
		{
			name:   "plural video keyword",
			entry:  newEntry("someone", "zeroscope", withDescription("Generates short videos from a text prompt")),
			wantOK: true, wantMedia: media.Video, wantConfid: 0.7,
		},
		{
			name:   "plural audio keyword",
			entry:  newEntry("someone", "composer", withDescription("Generates songs from prompts")),
			wantOK: true, wantMedia: media.Audio, wantConfid: 0.8,
		},
		{
			name:   "sounds",
			entry:  newEntry("someone", "foley-box", withDescription("Creates realistic sounds for any scene")),
			wantOK: true, wantMedia: media.Audio, wantConfid: 0.8,
		},
		{
			name:   "suffixed name",
			entry:  newEntry("someone", "musicgen2", withDescription("A fine-tuned generator for your prompts")),
			wantOK: true, wantMedia: media.Audio, wantConfid: 0.8,
		},
		{
			name:   "keyword must start a word",
			entry:  newEntry("acme", "landscape-painter", withDescription("Embarking on detailed landscape paintings")),
			wantOK: true, wantMedia: media.Image, wantConfid: 0.6,
		},
		{
			name:   "image fallback",
			entry:  newEntry("acme", "flux"),
			wantOK: true, wantMedia: media.Image, wantConfid: 0.6,
		},
	}

	c := NewRuleCategorizer(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Categorize(tt.entry)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantMedia, got.Category)
			assert.InDelta(t, tt.wantConfid, got.Confidence, 1e-9)
		})
	}
}

func TestRuleCategorizer_PromptFieldRequired(t *testing.T) {
	c := NewRuleCategorizer(nil, nil)
	inputs := []string{
		`{}`,
		`{"text": {"type": "string"}}`,
		`{"image": {"type": "string"}, "seed": {"type": "integer"}}`,
		`{"negative_prompt": {"type": "string"}, "steps": {"type": "integer"}}`,
	}
	for _, in := range inputs {
		e := newEntry("acme", "model", withSchema(in, uriOutput), withExampleOutput(`"https://x/y.mp4"`))
		_, ok := c.Categorize(e)
		assert.False(t, ok, "inputs %s", in)
	}
}

func TestRuleCategorizer_CustomKeywords(t *testing.T) {
	c := NewRuleCategorizer([]string{"podcast"}, []string{"reel"})

	got, ok := c.Categorize(newEntry("acme", "podcast-maker"))
	assert.True(t, ok)
	assert.Equal(t, media.Audio, got.Category)

	got, ok = c.Categorize(newEntry("acme", "music"))
	assert.True(t, ok)
	assert.Equal(t, media.Image, got.Category, "default keywords are replaced")
}

func TestCategorizerFunc(t *testing.T) {
	var c Categorizer = CategorizerFunc(func(e RawEntry) (Categorization, bool) {
		return Categorization{Category: media.Audio, Confidence: 1}, true
	})
	got, ok := c.Categorize(RawEntry{})
	assert.True(t, ok)
	assert.Equal(t, media.Audio, got.Category)
}
