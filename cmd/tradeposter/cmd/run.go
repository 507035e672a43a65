package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rustyeddy/tradeposter/feed"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track a live event feed",
	Long: `Connect to the platform's websocket event feed and post every round
trip of the configured account until interrupted.

Example:
  tradeposter run -f tradeposter.yaml
  tradeposter run -f tradeposter.yaml --ws ws://localhost:8765/events`,
	RunE: runRun,
}

var (
	runConfigPath string
	runWSURL      string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().StringVar(&runWSURL, "ws", "", "websocket feed URL (overrides feed.ws_url)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(runConfigPath)
	if err != nil {
		return err
	}
	if runWSURL != "" {
		cfg.Feed.WSURL = runWSURL
	}

	src, err := feed.Open(cfg.Feed.WSURL)
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.close(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan feed.Event, 256)
	go func() {
		if err := src.Run(ctx, events); err != nil {
			a.log.WithError(err).Error("feed stopped")
		}
	}()

	err = a.router.Run(ctx, events)
	if ctx.Err() != nil {
		a.log.Info("shutting down")
		return nil
	}
	return err
}
