package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kubiyabot/storyboard/internal/catalog"
	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/formatter"
	"github.com/kubiyabot/storyboard/internal/media"
)

func newModelsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"model"},
		Short:   "🤖 Browse generation models",
		Long: `List, search and inspect the Replicate models the studio can drive.
Synced models are cached in the data dir.`,
	}

	cmd.AddCommand(
		newListModelsCommand(a),
		newSearchModelsCommand(a),
		newShowModelCommand(a),
	)
	return cmd
}

func newListModelsCommand(a *app) *cobra.Command {
	var (
		category     string
		sync         bool
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List cached models, best first",
		Example: `  # List every cached model
  storyboard models list

  # Refresh the catalog and list video models as JSON
  storyboard models list --category video --sync -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			m, err := parseCategory(category)
			if err != nil {
				return err
			}
			registry, err := a.catalogFor(cmd.Context(), cfg, a.replicateClient(cfg), m, sync)
			if err != nil {
				return err
			}
			defer registry.Close()

			return a.writeModels(cmd.OutOrStdout(), outputFormat, registry.List(m))
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Only image, video or audio models")
	cmd.Flags().BoolVar(&sync, "sync", false, "Refresh the catalog from Replicate first")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format (json, yaml)")

	return cmd
}

func newSearchModelsCommand(a *app) *cobra.Command {
	var (
		category     string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search Replicate for models",
		Args:  cobra.ExactArgs(1),
		Example: `  # Find lip sync models
  storyboard models search "lip sync"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			m, err := parseCategory(category)
			if err != nil {
				return err
			}
			client := a.replicateClient(cfg)
			registry := a.registry(client)
			defer registry.Close()
			if err := a.loadCatalog(cfg, registry); err != nil {
				return err
			}

			found, err := registry.Search(cmd.Context(), cfg.ReplicateToken, args[0])
			if err != nil {
				return err
			}
			if m != "" {
				found = filterCategory(found, m)
			}
			if err := a.saveCatalog(cfg, registry); err != nil {
				a.logger.Warning("Could not save the model cache", "error", err)
			}
			return a.writeModels(cmd.OutOrStdout(), outputFormat, found)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Only image, video or audio models")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format (json, yaml)")

	return cmd
}

func newShowModelCommand(a *app) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:     "show OWNER/NAME[:VERSION]",
		Aliases: []string{"get", "describe"},
		Short:   "Show how a model is called",
		Args:    cobra.ExactArgs(1),
		Example: `  # Inspect a model's inputs and defaults
  storyboard models show black-forest-labs/flux-schnell`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			client := a.replicateClient(cfg)
			registry := a.registry(client)
			defer registry.Close()
			if err := a.loadCatalog(cfg, registry); err != nil {
				return err
			}

			model, err := registry.Resolve(cmd.Context(), cfg.ReplicateToken, args[0])
			if err != nil {
				return err
			}

			switch outputFormat {
			case "json", "yaml":
				return encode(cmd.OutOrStdout(), outputFormat, model)
			case "":
				formatter.ModelDetails(cmd.OutOrStdout(), model)
				return nil
			default:
				return unknownFormat(outputFormat)
			}
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format (json, yaml)")

	return cmd
}

func parseCategory(raw string) (media.Type, error) {
	if raw == "" {
		return "", nil
	}
	m, err := media.Parse(raw)
	if err != nil {
		return "", clierrors.ValidationError(err, "")
	}
	return m, nil
}

func filterCategory(models []catalog.ModelConfig, m media.Type) []catalog.ModelConfig {
	out := models[:0:0]
	for _, cfg := range models {
		if cfg.Category == m {
			out = append(out, cfg)
		}
	}
	return out
}

func (a *app) writeModels(w io.Writer, outputFormat string, models []catalog.ModelConfig) error {
	switch outputFormat {
	case "json", "yaml":
		return encode(w, outputFormat, models)
	case "":
		if len(models) == 0 {
			formatter.ModelsTable(w, models)
			return nil
		}
		return a.renderTable(w, formatter.NewModelsTable(w, models))
	}
	return unknownFormat(outputFormat)
}

func encode(w io.Writer, outputFormat string, v interface{}) error {
	if outputFormat == "yaml" {
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func unknownFormat(f string) error {
	return clierrors.ValidationError(fmt.Errorf("unknown output format %q", f), "Use json or yaml.")
}
