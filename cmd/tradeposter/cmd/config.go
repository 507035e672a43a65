package cmd

import (
	"fmt"

	"github.com/rustyeddy/tradeposter/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage tradeposter configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  tradeposter config init -o tradeposter.yaml
  tradeposter config validate -f tradeposter.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply environment overrides and report
the values that will be used, including every value Normalize repaired.`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "tradeposter.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  tradeposter run -f %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	warnings := cfg.Normalize()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Account: %s (%s)\n", cfg.Upload.AccountName, cfg.Upload.Environment)
	fmt.Fprintf(out, "  Upload: %t %s\n", cfg.Upload.Enabled, cfg.Upload.APIURL)
	fmt.Fprintf(out, "  Context bars: %d (exit context %t)\n", cfg.Data.ContextBars, cfg.Data.IncludeExitContext)
	fmt.Fprintf(out, "  Telegram: %t\n", cfg.Telegram.Enabled)
	fmt.Fprintf(out, "  Journal: %s\n", journalType(cfg))
	for _, w := range warnings {
		fmt.Fprintf(out, "  ! %s\n", w)
	}
	return nil
}

func journalType(cfg *config.Config) string {
	if cfg.Journal.Type == "" {
		return "none"
	}
	return cfg.Journal.Type
}
