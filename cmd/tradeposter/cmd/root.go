package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradeposter",
	Short: "Turn platform fills into posted round-trip trades",
	Long: `Tradeposter follows the fills of one trading account, folds each
flat -> open -> flat cycle into a single trade with inferred take-profit and
stop-loss levels, and posts it with candle context to a trade API and,
optionally, a Telegram chat.

Commands:
  run      - Track a live websocket event feed
  replay   - Replay a recorded CSV event file
  config   - Generate or validate configuration files
  journal  - Query the local trade journal`,
	SilenceUsage: true,
}

var envFile string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with secrets (optional)")
}
