package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeposter/feed"
	"github.com/rustyeddy/tradeposter/logger"
	"github.com/rustyeddy/tradeposter/market"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay recorded events from CSV",
	Long: `Replay a CSV file of order, execution and bar events through the
same pipeline as run, then wait for every trade to be delivered.

Rows:
  time,kind,account,instrument,action,qty,price,limit,stop,label,order_id,state
  time,bar,account,instrument,open,high,low,close,volume

Examples:
  tradeposter replay -f tradeposter.yaml -e session.csv
  tradeposter replay -f tradeposter.yaml -e session.csv --candles es.csv --instrument "ES 12-25"`,
	RunE: runReplay,
}

var (
	replayConfigPath  string
	replayEventsPath  string
	replayCandlesPath string
	replayInstrument  string
	replayFrom        string
	replayTo          string
	replayDrain       time.Duration
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayConfigPath, "config", "f", "", "path to config file (required)")
	replayCmd.Flags().StringVarP(&replayEventsPath, "events", "e", "", "CSV file of events (required)")
	replayCmd.Flags().StringVar(&replayCandlesPath, "candles", "", "CSV file of bars to preload (overrides data.candles_file)")
	replayCmd.Flags().StringVar(&replayInstrument, "instrument", "", "instrument the preloaded bars belong to")
	replayCmd.Flags().StringVar(&replayFrom, "from", "", "Optional RFC3339 start time")
	replayCmd.Flags().StringVar(&replayTo, "to", "", "Optional RFC3339 end time")
	replayCmd.Flags().DurationVar(&replayDrain, "drain", 30*time.Second, "how long to wait for pending deliveries")
	replayCmd.MarkFlagRequired("config")
	replayCmd.MarkFlagRequired("events")
}

func runReplay(cmd *cobra.Command, args []string) error {
	from, to, err := parseRange(replayFrom, replayTo)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(replayConfigPath)
	if err != nil {
		return err
	}

	src, err := feed.NewCSVFeed(replayEventsPath, from, to)
	if err != nil {
		return fmt.Errorf("open events: %w", err)
	}
	defer src.Close()

	var (
		hist  *market.History
		instr string
	)
	candles := replayCandlesPath
	if candles == "" {
		candles = cfg.Data.CandlesFile
	}
	if candles != "" {
		instr = replayInstrument
		if instr == "" {
			if syms := cfg.Symbols(); len(syms) > 0 {
				instr = syms[0]
			}
		}
		if instr == "" {
			return fmt.Errorf("--instrument is required with a candles file")
		}
		var st market.LoadStats
		hist, st, err = market.LoadCandlesCSV(candles)
		if err != nil {
			return fmt.Errorf("load candles: %w", err)
		}
		logger.Component("replay").WithFields(logrus.Fields{
			"instrument":   instr,
			"bars":         st.Rows,
			"bad_lines":    st.BadLines,
			"out_of_order": st.OutOfOrder,
		}).Info("candles loaded")
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	if hist != nil {
		a.router.SetHistory(instr, hist)
	}

	ctx := context.Background()
	events := make(chan feed.Event, 256)
	errc := make(chan error, 1)
	go func() { errc <- src.Run(ctx, events) }()

	runErr := a.router.Run(ctx, events)
	feedErr := <-errc

	dctx, cancel := context.WithTimeout(context.Background(), replayDrain)
	defer cancel()
	a.close(dctx)

	if runErr != nil {
		return runErr
	}
	if feedErr != nil {
		return fmt.Errorf("read events: %w", feedErr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Done. %s\n", replayEventsPath)
	return nil
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if fromStr != "" {
		if from, err = market.ParseTime(fromStr); err != nil {
			return from, to, fmt.Errorf("bad --from: %w", err)
		}
	}
	if toStr != "" {
		if to, err = market.ParseTime(toStr); err != nil {
			return from, to, fmt.Errorf("bad --to: %w", err)
		}
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, fmt.Errorf("--from must be before --to")
	}
	return from, to, nil
}
