package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kubiyabot/storyboard/internal/catalog"
	"github.com/kubiyabot/storyboard/internal/config"
	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/formatter"
	"github.com/kubiyabot/storyboard/internal/media"
	"github.com/kubiyabot/storyboard/internal/output"
	"github.com/kubiyabot/storyboard/internal/replicate"
	"github.com/kubiyabot/storyboard/internal/streaming"
	"github.com/kubiyabot/storyboard/internal/studio"
	"github.com/kubiyabot/storyboard/internal/style"
)

func newGenerateCommand(a *app) *cobra.Command {
	var (
		mediaFlag string
		all       bool
		policy    string
		sync      bool
		stream    string
	)

	cmd := &cobra.Command{
		Use:     "generate [SCENE]",
		Aliases: []string{"gen"},
		Short:   "🎨 Generate scene media",
		Long: `Generate the image, video or sound of one scene, or of every scene with --all.
Video is made from the scene's image and sound from its video, so generate in
that order. Ctrl+C cancels running predictions on Replicate.`,
		Args: cobra.MaximumNArgs(1),
		Example: `  # The image of scene 1
  storyboard generate 1

  # Every video, regenerating the ones that exist
  storyboard generate --all --media video --policy overwrite

  # Prediction events as JSON lines on stderr
  storyboard generate --all --stream json 2>events.ndjson`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return clierrors.ValidationError(errors.New("pass a scene number or --all"), "")
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			m, err := media.Parse(mediaFlag)
			if err != nil {
				return clierrors.ValidationError(err, "")
			}
			p, err := studio.ParsePolicy(policy)
			if err != nil {
				return err
			}
			var events *streaming.EventSink
			if cmd.Flags().Changed("stream") {
				format, err := streaming.ParseFormat(stream)
				if err != nil {
					return clierrors.ValidationError(err, "")
				}
				renderer := streaming.NewRenderer(streaming.Options{Format: format, Verbose: a.debug, Out: cmd.ErrOrStderr()})
				defer renderer.Close()
				events = streaming.Sink(renderer)
				defer func() {
					if err := events.Err(); err != nil {
						a.logger.Warning("Event stream stopped", "error", err)
					}
				}()
			}

			ctx := cmd.Context()
			client := a.replicateClient(cfg)
			registry, err := a.generationCatalog(ctx, cfg, client, m, sync)
			if err != nil {
				return err
			}
			defer registry.Close()

			var bar *output.ProgressBar
			saver := a.boardSaver(cfg)
			var st *studio.Studio
			sinks := []studio.EventSink{
				saver.sink(func() *studio.Studio { return st }),
				studio.EventSinkFunc(func(e studio.Event) {
					if e.Type == studio.EventSceneDone && bar != nil {
						bar.Increment()
					}
				}),
			}
			if events != nil {
				sinks = append(sinks, events)
			}
			sink := fanOut(sinks...)
			st, err = a.newStudio(cfg, client, registry, sink)
			if err != nil {
				return err
			}
			board := st.Storyboard()
			if board == nil {
				return clierrors.ValidationError(errors.New("no storyboard has been created"), "Run 'storyboard create \"<idea>\"' first.")
			}

			out := cmd.OutOrStdout()
			if !all {
				sceneID, err := strconv.Atoi(args[0])
				if err != nil || sceneID <= 0 {
					return clierrors.ValidationError(fmt.Errorf("invalid scene number %q", args[0]), "")
				}
				return a.generateOne(ctx, out, st, sceneID, m)
			}

			phase := a.progress.Phase(fmt.Sprintf("Generate %s for %d scenes", m, len(board.Scenes)))
			phase.Start()
			bar = a.progress.ProgressBar(len(board.Scenes), fmt.Sprintf("Generating %s", m))
			report := st.GenerateAll(ctx, m, "", p)
			bar.Finish()

			a.section(out, fmt.Sprintf("%s batch", m))
			if err := a.printReport(out, report); err != nil {
				phase.Fail(err)
				return err
			}
			phase.Complete()
			return nil
		},
	}

	cmd.Flags().StringVarP(&mediaFlag, "media", "m", "image", "Media to generate: image, video or audio")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Generate every scene")
	cmd.Flags().StringVar(&policy, "policy", string(studio.PolicySkipExisting), "With --all: skip-existing or overwrite")
	cmd.Flags().BoolVar(&sync, "sync", false, "Refresh the model catalog first")
	cmd.Flags().StringVar(&stream, "stream", "auto", "Write prediction events to stderr: auto, text or json")

	return cmd
}

// generationCatalog loads the model cache, syncing when forced or when
// nothing could serve m without a configured model
func (a *app) generationCatalog(ctx context.Context, cfg *config.Config, client *replicate.Client, m media.Type, force bool) (*catalog.Registry, error) {
	if cfg.Defaults.For(m).Model != "" && !force {
		registry := a.registry(client)
		if err := a.loadCatalog(cfg, registry); err != nil {
			registry.Close()
			return nil, err
		}
		return registry, nil
	}
	return a.catalogFor(ctx, cfg, client, m, force)
}

func (a *app) generateOne(ctx context.Context, out io.Writer, st *studio.Studio, sceneID int, m media.Type) error {
	spinner := a.progress.Spinner(fmt.Sprintf("Generating %s for scene %d", m, sceneID))
	spinner.Start()
	outcome, err := st.Generate(ctx, sceneID, m, "")
	switch {
	case err != nil:
		spinner.Fail(fmt.Sprintf("Scene %d %s failed", sceneID, m))
		return err
	case outcome.Canceled:
		spinner.Fail("Canceled")
		return clierrors.CancellationError(fmt.Errorf("scene %d %s generation canceled", sceneID, m))
	}
	spinner.Success(fmt.Sprintf("Scene %d %s ready in %s", sceneID, m, formatter.FormatDuration(outcome.Elapsed)))

	table := formatter.NewTable(out, "SCENE", "MEDIA", "MODEL", "PREDICTION", "URL")
	table.AddRow(strconv.Itoa(outcome.SceneID), string(outcome.Media), outcome.Model, formatter.TruncateID(outcome.PredictionID), outcome.URL)
	return a.renderTable(out, table)
}

func (a *app) printReport(out io.Writer, report studio.BatchReport) error {
	table := formatter.NewTable(out, "SCENE", "MEDIA", "MODEL", "PREDICTION", "RESULT")
	for _, o := range report.Outcomes {
		table.AddRow(strconv.Itoa(o.SceneID), string(o.Media), o.Model, formatter.TruncateID(o.PredictionID), outcomeResult(o))
	}
	if err := a.renderTable(out, table); err != nil {
		return err
	}

	summary := fmt.Sprintf("%d succeeded, %d failed, %d skipped, %d canceled in %s",
		report.Succeeded, report.Failed, report.Skipped, report.Canceled, formatter.FormatDuration(report.Elapsed))
	switch {
	case report.Canceled > 0:
		fmt.Fprintln(out, style.CreateWarningBox(summary))
		return clierrors.CancellationError(fmt.Errorf("%d %s generations canceled", report.Canceled, report.Media))
	case report.Failed > 0:
		fmt.Fprintln(out, style.CreateErrorBox(summary))
		return clierrors.PredictionFailedError("", fmt.Errorf("%d of %d %s generations failed", report.Failed, len(report.Outcomes), report.Media))
	}
	fmt.Fprintln(out, style.CreateSuccessBox(summary))
	return nil
}

func outcomeResult(o studio.Outcome) string {
	switch {
	case o.Skipped:
		return style.CreateStatusBadge("skipped")
	case o.Canceled:
		return style.CreateStatusBadge("canceled")
	case o.Error != "":
		return style.CreateStatusBadge("failed") + " " + formatter.TruncateString(o.Error, 60)
	}
	return o.URL
}
