package cli

import (
	"context"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kubiyabot/storyboard/internal/config"
	"github.com/kubiyabot/storyboard/internal/output"
	"github.com/kubiyabot/storyboard/internal/pterm"
)

// app carries what every command needs. Tests fill the fields directly.
type app struct {
	fs       afero.Fs
	cfg      *config.Config
	logger   *pterm.Logger
	progress *output.ProgressManager
	ui       *pterm.PTermManager

	configPath string
	envFile    string
	debug      bool
}

func newApp() *app {
	return &app{fs: afero.NewOsFs(), envFile: ".env"}
}

// setup creates the terminal helpers not injected already
func (a *app) setup() {
	if a.progress == nil {
		a.progress = output.NewProgressManager()
	}
	if a.ui == nil {
		a.ui = pterm.NewPTermManager(a.progress.Mode())
	}
	if a.logger == nil {
		a.logger = a.ui.Logger()
	}
	if a.debug {
		a.logger.SetDebug(true)
	}
}

// config loads the configuration on first use
func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.fs, a.configPath, a.envFile)
	if err != nil {
		return nil, err
	}
	if a.debug {
		cfg.Debug = true
	}
	if cfg.Debug {
		a.logger.SetDebug(true)
	}
	a.cfg = cfg
	return cfg, nil
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "storyboard",
		Short: "🎬 Storyboard Studio - from an idea to a generated storyboard",
		Long: `Storyboard Studio turns a short description into a multi-scene storyboard and
fills every scene with generated images, video clips and sound.

Quick Start:
  • Configure tokens:   storyboard init
  • Write a storyboard: storyboard create "a fox exploring a snowy forest"
  • Generate images:    storyboard generate --all --media image
  • Review the board:   storyboard show
  • Open the studio:    storyboard serve`,
		Example: `  # Browse the video models
  storyboard models list --category video --sync

  # Generate the video of scene 2
  storyboard generate 2 --media video

  # Start the web studio on another port
  storyboard serve --port 9000`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default ~/.config/storyboard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", a.envFile, "Dotenv file read before the environment")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newServeCommand(a),
		newInitCommand(a),
		newModelsCommand(a),
		newCreateCommand(a),
		newGenerateCommand(a),
		newShowCommand(a),
		newVersionCommand(a),
	)
	return rootCmd
}

// Execute runs the command line; ctx is canceled on interrupt
func Execute(ctx context.Context) error {
	return newRootCommand(newApp()).ExecuteContext(ctx)
}
