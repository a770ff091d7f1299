package cli

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/kubiyabot/storyboard/internal/formatter"
	"github.com/kubiyabot/storyboard/internal/output"
	"github.com/kubiyabot/storyboard/internal/storyboard"
)

func newShowCommand(a *app) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "📖 Show the current storyboard",
		Example: `  # Rendered in the terminal
  storyboard show

  # Scene status only
  storyboard show -o table

  # Raw Markdown or JSON
  storyboard show -o markdown
  storyboard show -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			board, err := storyboard.LoadFile(a.fs, cfg.StoryboardPath())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch outputFormat {
			case "json", "yaml":
				return encode(out, outputFormat, board)
			case "markdown", "md":
				_, err := fmt.Fprint(out, storyboard.Markdown(board))
				return err
			case "table":
				formatter.ScenesTable(out, board)
				return nil
			case "":
			default:
				return unknownFormat(outputFormat)
			}

			style := "dracula"
			if a.progress.Mode() == output.OutputModeCI {
				style = "notty"
			}
			rendered, err := glamour.Render(storyboard.Markdown(board), style)
			if err != nil {
				return fmt.Errorf("render storyboard: %w", err)
			}
			fmt.Fprint(out, rendered)
			formatter.ScenesTable(out, board)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format (table, markdown, json, yaml)")

	return cmd
}
