package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/pterm"
	"github.com/kubiyabot/storyboard/internal/storyboard"
)

func completion(content string) string {
	raw, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	})
	return string(raw)
}

func TestWriteScript(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completion("```json\n{\"scenes\": [{\"scene\": \"dawn\", \"scene_image_prompt\": \"sunrise\"}, {\"scene\": \"dusk\"}]}\n```"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1", "sk-test", "", pterm.Discard())
	entries, err := c.WriteScript(context.Background(), "a day at sea", storyboard.FormatSquare, storyboard.ModeDetailed)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "sunrise", entries[0].ImagePrompt)

	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, DefaultModel, got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[0].Content, "6 to 10")
	assert.Contains(t, got.Messages[0].Content, "1:1")
	assert.Equal(t, "a day at sea", got.Messages[1].Content)
}

func TestWriteScript_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType clierrors.ErrorType
	}{
		{"no scenes", 200, completion(`{"shots": []}`), clierrors.ErrorTypeStoryboardFormat},
		{"prose", 200, completion("I cannot help with that."), clierrors.ErrorTypeStoryboardFormat},
		{"no choices", 200, `{"choices": []}`, clierrors.ErrorTypeAPI},
		{"bad key", 401, `{"error": {"message": "Incorrect API key provided"}}`, clierrors.ErrorTypeAuth},
		{"rate limited", 429, `{"error": {"message": "Rate limit reached"}}`, clierrors.ErrorTypeAPI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "sk-test", "gpt-test", pterm.Discard())
			_, err := c.WriteScript(context.Background(), "idea", storyboard.FormatVertical, storyboard.ModeShort)
			require.Error(t, err)
			assert.Equal(t, tt.wantType, clierrors.TypeOf(err))
		})
	}
}

func TestComplete_MissingKey(t *testing.T) {
	c := NewClient("", "", "", nil)
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, false)
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeConfig))
}
