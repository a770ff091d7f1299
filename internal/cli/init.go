package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/kubiyabot/storyboard/internal/catalog"
	"github.com/kubiyabot/storyboard/internal/config"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/style"
)

// llmModels are offered by the interactive setup; any other name can be typed
var llmModels = []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini", "custom"}

func newInitCommand(a *app) *cobra.Command {
	var (
		replicateToken string
		openAIKey      string
		llmModel       string
		port           int
		imageModel     string
		videoModel     string
		audioModel     string
		nonInteractive bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "🎯 Write the configuration file",
		Long: `Create or update the configuration file with provider tokens and default
models. Values already configured are offered as defaults.`,
		Example: `  # Interactive setup (default)
  storyboard init

  # Non-interactive setup
  storyboard init --non-interactive --replicate-token r8_... --openai-key sk-...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				a.logger.Warning("Starting from the built-in defaults", "error", err)
				cfg = config.Default()
			}

			set := func(dst *string, v string) {
				if v != "" {
					*dst = v
				}
			}
			set(&cfg.ReplicateToken, replicateToken)
			set(&cfg.OpenAIAPIKey, openAIKey)
			set(&cfg.LLMModel, llmModel)
			set(&cfg.Defaults.Image.Model, imageModel)
			set(&cfg.Defaults.Video.Model, videoModel)
			set(&cfg.Defaults.Audio.Model, audioModel)
			if port > 0 {
				cfg.Port = port
			}

			if !nonInteractive {
				if err := promptConfig(cfg); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			path := a.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.Save(a.fs, path, cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), style.CreateSuccessBox(fmt.Sprintf("Configuration written to %s", path)))
			return nil
		},
	}

	cmd.Flags().StringVar(&replicateToken, "replicate-token", "", "Replicate API token")
	cmd.Flags().StringVar(&openAIKey, "openai-key", "", "OpenAI API key")
	cmd.Flags().StringVar(&llmModel, "llm-model", "", "Chat model that writes storyboards")
	cmd.Flags().IntVar(&port, "port", 0, "Web studio port")
	cmd.Flags().StringVar(&imageModel, "image-model", "", "Default image model (owner/name)")
	cmd.Flags().StringVar(&videoModel, "video-model", "", "Default video model (owner/name)")
	cmd.Flags().StringVar(&audioModel, "audio-model", "", "Default audio model (owner/name)")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Use flags only, without prompts")

	return cmd
}

func promptConfig(cfg *config.Config) error {
	var err error

	if cfg.ReplicateToken, err = promptSecret("Replicate API token", cfg.ReplicateToken); err != nil {
		return err
	}
	if cfg.OpenAIAPIKey, err = promptSecret("OpenAI API key", cfg.OpenAIAPIKey); err != nil {
		return err
	}

	modelSelect := promptui.Select{
		Label: fmt.Sprintf("Storyboard writer model (current: %s)", cfg.LLMModel),
		Items: llmModels,
	}
	_, choice, err := modelSelect.Run()
	if err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	if choice == "custom" {
		prompt := promptui.Prompt{Label: "Model name", Default: cfg.LLMModel}
		if choice, err = prompt.Run(); err != nil {
			return fmt.Errorf("prompt failed: %w", err)
		}
	}
	cfg.LLMModel = strings.TrimSpace(choice)

	for _, m := range media.All {
		slot := cfg.Defaults.For(m)
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Default %s model (empty picks the best synced one)", m),
			Default:   slot.Model,
			AllowEdit: true,
			Validate: func(s string) error {
				if s = strings.TrimSpace(s); s == "" {
					return nil
				}
				if _, _, _, ok := catalog.ParseModelRef(s); !ok {
					return fmt.Errorf("use owner/name or owner/name:version")
				}
				return nil
			},
		}
		ref, err := prompt.Run()
		if err != nil {
			return fmt.Errorf("prompt failed: %w", err)
		}
		setDefaultModel(cfg, m, strings.TrimSpace(ref))
	}

	portPrompt := promptui.Prompt{
		Label:   "Web studio port",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			p, err := strconv.Atoi(s)
			if err != nil || p <= 0 || p > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	raw, err := portPrompt.Run()
	if err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(raw)
	return nil
}

func promptSecret(label, current string) (string, error) {
	if current != "" {
		label += " (leave empty to keep the current one)"
	}
	prompt := promptui.Prompt{Label: label, Mask: '*'}
	v, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	if v = strings.TrimSpace(v); v == "" {
		return current, nil
	}
	return v, nil
}

func setDefaultModel(cfg *config.Config, m media.Type, ref string) {
	switch m {
	case media.Image:
		cfg.Defaults.Image.Model = ref
	case media.Video:
		cfg.Defaults.Video.Model = ref
	case media.Audio:
		cfg.Defaults.Audio.Model = ref
	}
}
