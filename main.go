package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kubiyabot/storyboard/internal/cli"
	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/sentry"
	"github.com/kubiyabot/storyboard/internal/version"
)

func main() {
	if err := sentry.Initialize(version.Version); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	sentry.Flush(2 * time.Second)

	if err != nil {
		fmt.Fprintln(os.Stderr, clierrors.FormatSimple(err))
		os.Exit(clierrors.ExitCodeFromError(err))
	}
}
