package catalog

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kubiyabot/storyboard/internal/media"
)

// Categorizer decides which media type a catalog entry produces.
// ok is false when the entry cannot be used at all.
type Categorizer interface {
	Categorize(e RawEntry) (c Categorization, ok bool)
}

// CategorizerFunc adapts a function to the Categorizer interface
type CategorizerFunc func(e RawEntry) (Categorization, bool)

func (f CategorizerFunc) Categorize(e RawEntry) (Categorization, bool) {
	return f(e)
}

var (
	videoExtensions = []string{".mp4", ".mov", ".webm"}
	audioExtensions = []string{".mp3", ".wav", ".m4a"}
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

	defaultAudioKeywords = []string{
		"audio", "music", "sound", "speech", "voice", "tts", "text-to-speech",
		"musicgen", "audioldm", "bark", "song", "sfx", "foley",
	}
	defaultVideoKeywords = []string{
		"video", "animate", "animation", "motion", "text-to-video", "image-to-video",
		"img2vid", "i2v", "t2v", "film",
	}
	videoInputFields = []string{"start_image", "end_image", "video"}
)

// RuleCategorizer classifies by example output file extension, then by keyword
// matches over the name and description, then falls back to image.
type RuleCategorizer struct {
	audio *regexp.Regexp
	video *regexp.Regexp
}

// NewRuleCategorizer builds a RuleCategorizer. Nil keyword lists use the defaults.
func NewRuleCategorizer(audioKeywords, videoKeywords []string) *RuleCategorizer {
	if audioKeywords == nil {
		audioKeywords = defaultAudioKeywords
	}
	if videoKeywords == nil {
		videoKeywords = defaultVideoKeywords
	}
	return &RuleCategorizer{
		audio: keywordPattern(audioKeywords),
		video: keywordPattern(videoKeywords),
	}
}

// keywordPattern matches a keyword at the start of a word, so plurals and
// suffixed names ("videos", "musicgen2") count but "embark" does not
func keywordPattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(w))
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\w*`)
}

// Categorize implements Categorizer
func (r *RuleCategorizer) Categorize(e RawEntry) (Categorization, bool) {
	props := inputProperties(e)
	if !hasPromptField(props) {
		return Categorization{}, false
	}
	if !usableOutput(e) {
		return Categorization{}, false
	}

	if out := exampleOutput(e); out != "" {
		lower := strings.ToLower(out)
		switch {
		case containsAny(lower, videoExtensions):
			return Categorization{Category: media.Video, Confidence: 0.9}, true
		case containsAny(lower, audioExtensions):
			return Categorization{Category: media.Audio, Confidence: 0.9}, true
		case containsAny(lower, imageExtensions):
			return Categorization{Category: media.Image, Confidence: 0.9}, true
		}
	}

	text := strings.ToLower(e.DescriptionText() + " " + e.Name)
	if r.audio.MatchString(text) {
		return Categorization{Category: media.Audio, Confidence: 0.8}, true
	}
	if r.video.MatchString(text) || hasAnyField(props, videoInputFields) {
		return Categorization{Category: media.Video, Confidence: 0.7}, true
	}
	return Categorization{Category: media.Image, Confidence: 0.6}, true
}

// isPromptName matches "prompt" and names containing it, except negative prompts
func isPromptName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "prompt") && !strings.Contains(lower, "negative")
}

func hasPromptField(props []property) bool {
	for _, p := range props {
		if isPromptName(p.Name) {
			return true
		}
	}
	return false
}

func hasAnyField(props []property, names []string) bool {
	for _, p := range props {
		for _, n := range names {
			if p.Name == n {
				return true
			}
		}
	}
	return false
}

// usableOutput accepts a single URI string or an array output
func usableOutput(e RawEntry) bool {
	typ, format, ok := outputShape(e)
	if !ok {
		return false
	}
	return (typ == "string" && format == "uri") || typ == "array"
}

// exampleOutput returns the example output string, or the first string of an array
func exampleOutput(e RawEntry) string {
	if e.DefaultExample == nil || len(e.DefaultExample.Output) == 0 {
		return ""
	}
	out := gjson.ParseBytes(e.DefaultExample.Output)
	switch {
	case out.Type == gjson.String:
		return out.String()
	case out.IsArray():
		for _, item := range out.Array() {
			if item.Type == gjson.String {
				return item.String()
			}
		}
	}
	return ""
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
