package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kubiyabot/storyboard/internal/config"
	"github.com/kubiyabot/storyboard/internal/studio"
	"github.com/kubiyabot/storyboard/internal/uploads"
	"github.com/kubiyabot/storyboard/internal/version"
	"github.com/kubiyabot/storyboard/internal/webui"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var (
		host   string
		port   int
		noSync bool
		open   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "🌐 Start the web studio",
		Long: `Start the local web studio. The board is shared with the other commands
through the data dir, and every change is saved as it happens.`,
		Example: `  # Start on the configured address
  storyboard serve

  # Listen on all interfaces and open a browser
  storyboard serve --host 0.0.0.0 --port 9000 --open`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Host = host
			}
			if port > 0 {
				cfg.Port = port
			}
			return a.serve(cmd.Context(), cfg, !noSync, open)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default from config)")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "Skip the model catalog sync at startup")
	cmd.Flags().BoolVar(&open, "open", false, "Open the studio in a browser")

	return cmd
}

func (a *app) serve(ctx context.Context, cfg *config.Config, syncCatalog, open bool) error {
	client := a.replicateClient(cfg)
	registry := a.registry(client)
	defer registry.Close()
	if err := a.loadCatalog(cfg, registry); err != nil {
		return err
	}

	state := webui.NewState()
	saver := a.boardSaver(cfg)
	var st *studio.Studio
	st, err := a.newStudio(cfg, client, registry, fanOut(state, saver.sink(func() *studio.Studio { return st })))
	if err != nil {
		return err
	}

	store := uploads.NewMemoryStore(cfg.UploadTTL)
	defer store.Close()
	up, err := uploads.NewService(uploads.Options{
		Remote: client,
		Store:  store,
		Fs:     a.fs,
		Dir:    cfg.UploadDir(),
		Secret: []byte(cfg.UploadSecret),
		TTL:    cfg.UploadTTL,
		Logger: a.logger,
	})
	if err != nil {
		return err
	}

	srv, err := webui.NewServer(webui.Options{
		Studio:  st,
		Uploads: up,
		State:   state,
		Config:  cfg,
		Logger:  a.logger,
		Version: version.GetVersion(),
	})
	if err != nil {
		return err
	}
	if err := srv.Start(ctx, cfg.Addr()); err != nil {
		return err
	}

	if syncCatalog && cfg.ReplicateToken != "" {
		go func() {
			report, err := registry.Sync(ctx, cfg.ReplicateToken, syncOptions(cfg))
			if err != nil {
				a.logger.Warning("Model catalog sync failed", "error", err)
				return
			}
			a.logger.Success("Model catalog synced", "models", report.Normalized)
			if err := a.saveCatalog(cfg, registry); err != nil {
				a.logger.Warning("Could not save the model cache", "error", err)
			}
			state.Broadcast(webui.SSEEvent{Type: webui.SSEEventCatalog, Data: report})
		}()
	} else if cfg.ReplicateToken == "" {
		a.logger.Warning("No Replicate token configured; requests must send their own")
	}

	a.progress.Info(fmt.Sprintf("Studio running at %s (Ctrl+C to stop)", srv.URL()))
	if open {
		openURL(srv.URL())
	}

	<-ctx.Done()
	a.progress.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	return saver.save(st.Storyboard())
}
