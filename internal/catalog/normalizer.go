package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/kubiyabot/storyboard/internal/params"
)

const maxExamplePrompts = 3

// preferred vertical framing for short-form video
const defaultAspectRatio = "9:16"

const defaultGuidanceScale = 7.5

var (
	promptFieldPriority = []string{"prompt", "text_prompt", "prompt_text", "caption", "text"}
	imageFieldPriority  = []string{
		"start_image", "first_frame_image", "image", "input_image", "image_url",
		"init_image", "reference_image",
	}
	videoFieldPriority = []string{"video", "input_video", "video_url", "video_path", "source_video"}

	// substrings that disqualify a field from a media role
	roleFieldExclusions = []string{"end", "mask", "format", "size", "num", "aspect", "fps", "length", "duration"}
)

// Normalizer turns raw catalog entries into ModelConfigs
type Normalizer struct {
	categorizer Categorizer
	now         func() time.Time
}

// NewNormalizer creates a Normalizer. A nil categorizer uses the default RuleCategorizer.
func NewNormalizer(c Categorizer) *Normalizer {
	if c == nil {
		c = NewRuleCategorizer(nil, nil)
	}
	return &Normalizer{categorizer: c, now: time.Now}
}

// Normalize builds a ModelConfig for one entry. ok is false when the entry
// cannot be invoked or categorized.
func (n *Normalizer) Normalize(e RawEntry) (cfg ModelConfig, ok bool) {
	if e.Owner == "" || e.Name == "" {
		return ModelConfig{}, false
	}
	if e.LatestVersion == nil || e.LatestVersion.ID == "" {
		return ModelConfig{}, false
	}
	if !hasInputSchema(e) {
		return ModelConfig{}, false
	}

	cat, found := n.categorizer.Categorize(e)
	if !found || !cat.Category.Valid() {
		return ModelConfig{}, false
	}

	props := inputProperties(e)

	cfg = ModelConfig{
		ID:                e.ID(),
		Owner:             e.Owner,
		Name:              e.Name,
		Category:          cat.Category,
		Endpoint:          e.ID(),
		Version:           e.LatestVersion.ID,
		InputMapping:      buildInputMapping(props),
		DefaultParams:     extractDefaults(props),
		ParamTypes:        paramTypes(props),
		Description:       strings.TrimSpace(e.DescriptionText()),
		RunCount:          e.RunCount,
		Confidence:        cat.Confidence,
		QualityScore:      QualityScore(e, n.now()),
		Pricing:           pricingTier(e),
		ExamplePrompts:    examplePrompts(e),
		ParamDescriptions: paramDescriptions(props),
	}
	if e.CoverImageURL != nil {
		cfg.CoverImageURL = *e.CoverImageURL
	}
	return cfg, true
}

// NormalizePage filters, normalizes and ranks one page of entries. Configs
// under MinConfidence are dropped. The result is ordered by quality score.
func (n *Normalizer) NormalizePage(entries []RawEntry) []ModelConfig {
	filtered := FilterHighQuality(entries, n.now())
	return lo.FilterMap(filtered, func(e RawEntry, _ int) (ModelConfig, bool) {
		cfg, ok := n.Normalize(e)
		if !ok || cfg.Confidence < MinConfidence {
			return ModelConfig{}, false
		}
		return cfg, true
	})
}

func extractDefaults(props []property) params.Params {
	defaults := params.Params{}
	for _, p := range props {
		if !p.Default.Exists() || p.Default.Type == gjson.Null {
			continue
		}
		v, err := params.FromAny(p.Default.Value())
		if err != nil {
			continue
		}
		if p.Type != params.TypeUnknown {
			if coerced, err := params.Coerce(v, p.Type); err == nil {
				v = coerced
			}
		}
		defaults[p.Name] = v
	}

	for _, p := range props {
		switch p.Name {
		case "aspect_ratio":
			if len(p.Enum) == 0 || lo.Contains(p.Enum, defaultAspectRatio) {
				defaults[p.Name] = params.String(defaultAspectRatio)
			}
		case "guidance_scale":
			defaults[p.Name] = params.Number(defaultGuidanceScale)
		}
	}
	return defaults
}

func paramTypes(props []property) map[string]params.Type {
	types := make(map[string]params.Type, len(props))
	for _, p := range props {
		if p.Type != params.TypeUnknown {
			types[p.Name] = p.Type
		}
	}
	return types
}

func paramDescriptions(props []property) map[string]string {
	descs := make(map[string]string)
	for _, p := range props {
		if p.Description != "" {
			descs[p.Name] = p.Description
		}
	}
	if len(descs) == 0 {
		return nil
	}
	return descs
}

func buildInputMapping(props []property) InputMapping {
	names := lo.Map(props, func(p property, _ int) string { return p.Name })
	return InputMapping{
		Prompt: pickField(names, promptFieldPriority, func(name string) bool {
			return isPromptName(name)
		}),
		Image: pickField(names, imageFieldPriority, func(name string) bool {
			return roleCandidate(props, name, "image")
		}),
		Video: pickField(names, videoFieldPriority, func(name string) bool {
			return roleCandidate(props, name, "video")
		}),
	}
}

// pickField returns the first exact match in priority order, then the first
// schema-ordered name accepted by fallback.
func pickField(names, priority []string, fallback func(string) bool) string {
	for _, want := range priority {
		if lo.Contains(names, want) {
			return want
		}
	}
	for _, name := range names {
		if fallback(name) {
			return name
		}
	}
	return ""
}

func roleCandidate(props []property, name, role string) bool {
	lower := strings.ToLower(name)
	if !strings.Contains(lower, role) {
		return false
	}
	if containsAny(lower, roleFieldExclusions) {
		return false
	}
	p, ok := lo.Find(props, func(p property) bool { return p.Name == name })
	if !ok {
		return false
	}
	return p.Type == params.TypeString || p.Type == params.TypeUnknown || p.Format == "uri"
}

func examplePrompts(e RawEntry) []string {
	if e.DefaultExample == nil || len(e.DefaultExample.Input) == 0 {
		return nil
	}

	keys := lo.Keys(e.DefaultExample.Input)
	keys = lo.Filter(keys, func(k string, _ int) bool { return isPromptName(k) })
	// deterministic order, "prompt" first
	sortPromptKeys(keys)

	var prompts []string
	for _, k := range keys {
		s, ok := e.DefaultExample.Input[k].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		prompts = append(prompts, s)
	}
	prompts = lo.Uniq(prompts)
	if len(prompts) > maxExamplePrompts {
		prompts = prompts[:maxExamplePrompts]
	}
	return prompts
}

func sortPromptKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if (a == "prompt") != (b == "prompt") {
			return a == "prompt"
		}
		return a < b
	})
}
