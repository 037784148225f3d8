package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/muxworks/mux/internal/dependency"
)

var serveVerbose bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mux daemon",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Verbose logging")
}

func runServe(_ *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if serveVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	c, err := dependency.BuildContainer(configPath)
	if err != nil {
		return fmt.Errorf("build container: %w", err)
	}

	return c.Invoke(func(app dependency.App) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app.Tasks.Start()
		defer app.Tasks.Dispose()

		// Recover tasks that were in flight when the previous process died.
		app.Tasks.Rehydrate()

		if err := app.Sweeper.Start(); err != nil {
			return fmt.Errorf("start sweeper: %w", err)
		}
		defer app.Sweeper.Stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return app.Gateway.Run(ctx) })

		fmt.Printf("mux daemon running on port %d\n", app.Config.Gateway.Port)
		return g.Wait()
	})
}
