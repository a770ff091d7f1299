package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kubiyabot/storyboard/internal/version"
)

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "📋 Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Storyboard Studio %s\n", version.GetVersion())

			// Check for updates
			if msg := version.GetUpdateMessage(cmd.Context()); msg != "" {
				fmt.Fprint(out, msg)
			}
		},
	}
}
