package storyboard

import (
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/params"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func threeScenes() *StoryboardData {
	return CreateFromScript([]ScriptEntry{
		{Scene: "A fox wakes up", ImagePrompt: "fox in a den", VideoPrompt: "fox stretches", SoundPrompt: "birdsong"},
		{Scene: "The fox hunts", ImagePrompt: "fox in snow", VideoPrompt: "fox pounces", SoundPrompt: "crunching snow"},
		{Scene: "The fox sleeps", ImagePrompt: "fox curled up", VideoPrompt: "slow zoom", SoundPrompt: "wind"},
	}, "a day in the life of a fox", FormatVertical, ModeShort)
}

func TestParseScript(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{
			name:    "plain JSON",
			content: `{"scenes": [{"scene": "one", "scene_image_prompt": "a", "scene_video_prompt": "b", "scene_sound_prompt": "c"}]}`,
			want:    1,
		},
		{
			name:    "fenced JSON",
			content: "```json\n{\"scenes\": [{\"scene\": \"one\"}, {\"scene\": \"two\"}]}\n```",
			want:    2,
		},
		{
			name:    "bare fence",
			content: "```\n{\"scenes\": [{\"scene\": \"one\"}]}\n```",
			want:    1,
		},
		{name: "no scenes key", content: `{"shots": []}`, wantErr: true},
		{name: "scenes is not an array", content: `{"scenes": "one, two"}`, wantErr: true},
		{name: "empty scenes", content: `{"scenes": []}`, wantErr: true},
		{name: "not JSON", content: "Sure! Here is your storyboard.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := ParseScript(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, clierrors.ErrorTypeStoryboardFormat, clierrors.TypeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, entries, tt.want)
		})
	}
}

func TestParseScript_Fields(t *testing.T) {
	entries, err := ParseScript(`{"scenes": [{"scene": 1, "scene_image_prompt": " a castle ", "scene_video_prompt": "pan", "scene_sound_prompt": "horns"}]}`)
	require.NoError(t, err)
	assert.Equal(t, ScriptEntry{Scene: "1", ImagePrompt: "a castle", VideoPrompt: "pan", SoundPrompt: "horns"}, entries[0])
}

func TestCreateFromScript(t *testing.T) {
	entries := make([]ScriptEntry, 6)
	for i := range entries {
		entries[i] = ScriptEntry{Scene: "s", ImagePrompt: "img"}
	}
	data := CreateFromScript(entries, "idea", "", "")

	assert.Equal(t, FormatVertical, data.Format)
	assert.Equal(t, ModeShort, data.Mode)
	require.Len(t, data.Scenes, 6)

	seen := map[Position]bool{}
	for i, sc := range data.Scenes {
		assert.Equal(t, i+1, sc.ID)
		assert.Equal(t, "img", sc.Image.Prompt)
		for _, m := range media.All {
			slot := sc.SlotOf(m)
			assert.False(t, slot.Generated)
			assert.False(t, slot.Generating)
			assert.False(t, slot.CustomUploaded)
		}
		require.NotNil(t, sc.Position)
		assert.False(t, seen[*sc.Position], "positions do not overlap")
		seen[*sc.Position] = true
	}
	assert.Equal(t, data.Scenes[0].Position.Y, data.Scenes[3].Position.Y)
	assert.Greater(t, data.Scenes[4].Position.Y, data.Scenes[3].Position.Y, "fifth scene starts a new row")
}

func TestResolveEffectiveURL(t *testing.T) {
	sc := Scene{Image: MediaSlot{GeneratedURL: "gen.png", CustomUploaded: true, CustomURL: "up.png"}}
	assert.Equal(t, "up.png", ResolveEffectiveURL(sc, media.Image))

	sc.Image.CustomUploaded = false
	assert.Equal(t, "gen.png", ResolveEffectiveURL(sc, media.Image), "inactive uploads are ignored")

	sc.Image.CustomUploaded = true
	sc.Image.CustomURL = ""
	assert.Equal(t, "gen.png", ResolveEffectiveURL(sc, media.Image), "flag without a URL falls back")

	assert.Equal(t, "", ResolveEffectiveURL(sc, media.Video))
	assert.Equal(t, "", ResolveEffectiveURL(sc, media.Type("hologram")))
}

func TestResolveEffectiveParams(t *testing.T) {
	settings := Settings{
		Video: MediaSettings{
			Model:  "acme/global-video",
			Params: params.Params{"duration": params.Int(5), "fps": params.Int(24)},
		},
	}
	sc := Scene{Video: MediaSlot{Params: params.Params{"duration": params.Int(10)}}}

	eff := ResolveEffectiveParams(media.Video, sc, settings)
	assert.Equal(t, "acme/global-video", eff.Model)
	assert.True(t, params.Number(10).Equal(eff.Params["duration"]), "scene value wins")
	assert.True(t, params.Number(24).Equal(eff.Params["fps"]), "other global values survive")

	sc.Video.Model = "acme/scene-video"
	eff = ResolveEffectiveParams(media.Video, sc, settings)
	assert.Equal(t, "acme/scene-video", eff.Model)

	eff.Params["fps"] = params.Int(60)
	assert.True(t, params.Number(24).Equal(settings.Video.Params["fps"]), "settings are not aliased")
}

func TestStore_UpdateScene(t *testing.T) {
	s := NewStore(threeScenes())

	updated, err := s.UpdateScene(2, ScenePatch{
		Video: &SlotPatch{Prompt: strPtr("fox leaps"), Model: strPtr("acme/kling")},
		Image: &SlotPatch{CustomURL: strPtr("up.png"), CustomUploaded: boolPtr(true)},
	})
	require.NoError(t, err)
	assert.Equal(t, "fox leaps", updated.Video.Prompt)
	assert.Equal(t, "acme/kling", updated.Video.Model)
	assert.Equal(t, "The fox hunts", updated.Script, "unset fields keep their value")
	assert.Equal(t, "fox in snow", updated.Image.Prompt)
	assert.Equal(t, "up.png", ResolveEffectiveURL(updated, media.Image))

	other, err := s.Scene(1)
	require.NoError(t, err)
	assert.Equal(t, "fox stretches", other.Video.Prompt, "other scenes are untouched")

	_, err = s.UpdateScene(99, ScenePatch{Script: strPtr("x")})
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))
}

func TestStore_SetGenerationResult(t *testing.T) {
	s := NewStore(threeScenes())

	sc, err := s.SetGenerationResult(1, media.Video, "v1.mp4")
	require.NoError(t, err)
	assert.True(t, sc.Video.Generated)
	assert.Equal(t, "v1.mp4", sc.Video.GeneratedURL)

	_, err = s.SetGenerationResult(1, media.Audio, "a1.mp3")
	require.NoError(t, err)

	sc, err = s.SetGenerationResult(1, media.Image, "i2.png")
	require.NoError(t, err)
	assert.True(t, sc.Image.Generated)
	assert.False(t, sc.Image.Stale)
	assert.True(t, sc.Video.Stale, "video was made from the previous image")
	assert.True(t, sc.Audio.Stale)
	assert.Equal(t, "v1.mp4", sc.Video.GeneratedURL, "downstream assets are kept")

	sc, err = s.SetGenerationResult(1, media.Video, "v2.mp4")
	require.NoError(t, err)
	assert.False(t, sc.Video.Stale)
	assert.True(t, sc.Audio.Stale)

	_, err = s.SetGenerationResult(1, media.Image, "")
	assert.Error(t, err)
}

func TestStore_NotCreated(t *testing.T) {
	s := NewStore(nil)
	assert.Nil(t, s.Snapshot())
	_, err := s.SetGenerating(1, media.Image, true)
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore(threeScenes())
	snap := s.Snapshot()
	snap.Scenes[0].Image.Prompt = "mutated"
	snap.Scenes[0].Position.X = -1

	sc, err := s.Scene(1)
	require.NoError(t, err)
	assert.Equal(t, "fox in a den", sc.Image.Prompt)
	assert.NotEqual(t, -1.0, sc.Position.X)
}

func TestStore_ConcurrentResults(t *testing.T) {
	s := NewStore(threeScenes())

	var wg sync.WaitGroup
	for _, id := range s.SceneIDs() {
		for _, m := range media.All {
			wg.Add(1)
			go func(id int, m media.Type) {
				defer wg.Done()
				_, _ = s.SetGenerating(id, m, true)
				_, _ = s.SetGenerationResult(id, m, "url")
				_, _ = s.SetGenerating(id, m, false)
			}(id, m)
		}
	}
	wg.Wait()

	for _, sc := range s.Snapshot().Scenes {
		for _, m := range media.All {
			slot := sc.SlotOf(m)
			assert.True(t, slot.Generated)
			assert.False(t, slot.Generating)
			assert.Equal(t, "url", slot.GeneratedURL)
		}
	}
}

func TestFile_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := threeScenes()
	data.Scenes[0].Image.Generating = true
	data.Scenes[0].Image.Params = params.Params{"seed": params.Int(42)}

	require.NoError(t, SaveFile(fs, "/data/storyboard.json", data))

	loaded, err := LoadFile(fs, "/data/storyboard.json")
	require.NoError(t, err)
	assert.Len(t, loaded.Scenes, 3)
	assert.False(t, loaded.Scenes[0].Image.Generating)
	assert.True(t, params.Number(42).Equal(loaded.Scenes[0].Image.Params["seed"]))
	assert.True(t, data.Scenes[0].Image.Generating, "the caller's board is not modified")

	_, err = LoadFile(fs, "/missing.json")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))

	require.NoError(t, afero.WriteFile(fs, "/bad.json", []byte("{"), 0o644))
	_, err = LoadFile(fs, "/bad.json")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeStoryboardFormat))
}

func TestMarkdown(t *testing.T) {
	data := threeScenes()
	data.Scenes[1].Image.GeneratedURL = "https://x/2.png"
	data.Scenes[1].Image.Generated = true
	data.Scenes[2].Video.LastError = "CUDA out of memory"

	md := Markdown(data)
	assert.Contains(t, md, "# a day in the life of a fox")
	assert.Contains(t, md, "## Scene 2")
	assert.Contains(t, md, "https://x/2.png")
	assert.Contains(t, md, "failed: CUDA out of memory")
	assert.Contains(t, Markdown(nil), "No storyboard")
}
