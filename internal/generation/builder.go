package generation

import (
	"fmt"
	"strings"

	"github.com/kubiyabot/storyboard/internal/catalog"
	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/params"
)

// Role is the part a media URL plays in a request
type Role string

const (
	// RoleImage is the source or reference image
	RoleImage Role = "image"
	// RoleVideo is the source video
	RoleVideo Role = "video"
)

// RoleURLs maps roles to asset URLs
type RoleURLs map[Role]string

// BuildInput assembles the prediction input for cfg. Overrides are coerced to
// the declared schema types and merged over the defaults; the prompt and media
// role fields are written last so overrides cannot replace them.
func BuildInput(cfg catalog.ModelConfig, promptText string, roles RoleURLs, overrides params.Params) (params.Params, error) {
	if cfg.Endpoint == "" {
		return nil, clierrors.ModelConfigError(fmt.Errorf("model %q has no endpoint", cfg.ID))
	}
	if cfg.Version == "" {
		return nil, clierrors.ModelConfigError(fmt.Errorf("model %s has no version and cannot be invoked", cfg.Endpoint))
	}

	text := strings.TrimSpace(promptText)
	if text == "" {
		return nil, clierrors.ValidationError(fmt.Errorf("empty prompt for %s", cfg.ID), "Give the scene a script or a media prompt.")
	}

	input := cfg.DefaultParams.Clone()

	if len(overrides) > 0 {
		coerced, err := params.CoerceAll(overrides, cfg.ParamTypes)
		if err != nil {
			return nil, clierrors.ValidationError(err, fmt.Sprintf("Check the parameter types declared by %s.", cfg.ID))
		}
		input = input.Merge(coerced)
	}

	input[promptField(cfg)] = params.String(text)

	for _, role := range []Role{RoleImage, RoleVideo} {
		url := strings.TrimSpace(roles[role])
		if url == "" {
			continue
		}
		// optional references are dropped when the model has nowhere to put them
		if field := roleField(cfg, role); field != "" {
			input[field] = params.String(url)
		}
	}

	return input, nil
}

func promptField(cfg catalog.ModelConfig) string {
	if cfg.InputMapping.Prompt != "" {
		return cfg.InputMapping.Prompt
	}
	if cfg.Category == media.Audio {
		return "caption"
	}
	return "prompt"
}

// roleField returns the schema field for a role, or "" when the model has none.
// Image models only take a reference image through an explicit mapping.
func roleField(cfg catalog.ModelConfig, role Role) string {
	switch role {
	case RoleImage:
		if cfg.InputMapping.Image != "" {
			return cfg.InputMapping.Image
		}
		if cfg.Category == media.Video {
			return "start_image"
		}
	case RoleVideo:
		if cfg.InputMapping.Video != "" {
			return cfg.InputMapping.Video
		}
		if cfg.Category == media.Audio {
			return "video"
		}
	}
	return ""
}
