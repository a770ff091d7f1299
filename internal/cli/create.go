package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kubiyabot/storyboard/internal/formatter"
	"github.com/kubiyabot/storyboard/internal/storyboard"
	"github.com/kubiyabot/storyboard/internal/studio"
	"github.com/kubiyabot/storyboard/internal/style"
)

func newCreateCommand(a *app) *cobra.Command {
	var (
		format string
		mode   string
	)

	cmd := &cobra.Command{
		Use:   "create IDEA",
		Short: "📝 Write a new storyboard from an idea",
		Long: `Ask the language model to expand an idea into scenes with image, video and
sound prompts. The new board replaces the current one in the data dir.`,
		Args: cobra.MinimumNArgs(1),
		Example: `  # A vertical short
  storyboard create "a paper boat sailing through a rainy city"

  # A detailed landscape board
  storyboard create "the life of a lighthouse keeper" --format landscape --mode detailed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			client := a.replicateClient(cfg)
			registry := a.registry(client)
			defer registry.Close()

			saver := a.boardSaver(cfg)
			var st *studio.Studio
			st, err = a.newStudio(cfg, client, registry, saver.sink(func() *studio.Studio { return st }))
			if err != nil {
				return err
			}

			phase := a.progress.Phase("Write the storyboard")
			phase.Start()
			spinner := a.progress.Spinner("Writing the storyboard")
			spinner.Start()
			board, err := st.CreateStoryboard(cmd.Context(), strings.Join(args, " "),
				storyboard.Format(strings.ToLower(format)), storyboard.Mode(strings.ToLower(mode)))
			if err != nil {
				spinner.Fail("Storyboard could not be written")
				phase.Fail(err)
				return err
			}
			spinner.Success(fmt.Sprintf("%d scenes written", len(board.Scenes)))
			phase.Complete()

			out := cmd.OutOrStdout()
			formatter.ScenesTable(out, board)
			fmt.Fprintln(out, style.CreateHelpBox(fmt.Sprintf(
				"Saved to %s\nNext: storyboard generate --all --media image", cfg.StoryboardPath())))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Frame format: vertical, landscape or square (default vertical)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Scene count: short or detailed (default short)")

	return cmd
}
