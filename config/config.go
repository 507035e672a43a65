package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/tradeposter/market"
	"gopkg.in/yaml.v3"
)

// Config is the complete tradeposter configuration.
type Config struct {
	Upload      UploadConfig       `json:"upload" yaml:"upload"`
	Data        DataConfig         `json:"data" yaml:"data"`
	PnL         PnLConfig          `json:"pnl" yaml:"pnl"`
	Telegram    TelegramConfig     `json:"telegram" yaml:"telegram"`
	Instruments []InstrumentConfig `json:"instruments,omitempty" yaml:"instruments,omitempty"`
	Journal     JournalConfig      `json:"journal" yaml:"journal"`
	Log         LogConfig          `json:"log" yaml:"log"`
	Metrics     MetricsConfig      `json:"metrics" yaml:"metrics"`
	Tracing     TracingConfig      `json:"tracing" yaml:"tracing"`
	Feed        FeedConfig         `json:"feed" yaml:"feed"`
}

// UploadConfig controls which account is tracked and where trades are sent.
type UploadConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Environment string `json:"environment" yaml:"environment"` // backtest, sim or real
	APIURL      string `json:"api_url" yaml:"api_url"`
	AccountName string `json:"account_name" yaml:"account_name"`
	Timeout     string `json:"timeout" yaml:"timeout"` // e.g. "10s"
	QueueSize   int    `json:"queue_size" yaml:"queue_size"`

	// KnownAccounts lists the accounts available on the platform; when set,
	// an AccountName outside it disables tracking.
	KnownAccounts []string `json:"known_accounts,omitempty" yaml:"known_accounts,omitempty"`
}

// TimeoutDuration parses Timeout, returning def when it is empty or invalid.
func (u UploadConfig) TimeoutDuration(def time.Duration) time.Duration {
	if u.Timeout == "" {
		return def
	}
	d, err := time.ParseDuration(u.Timeout)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// DataConfig controls the candle context sent with each trade.
type DataConfig struct {
	ContextBars        int    `json:"context_bars" yaml:"context_bars"`
	IncludeExitContext bool   `json:"include_exit_context" yaml:"include_exit_context"`
	CandlesFile        string `json:"candles_file,omitempty" yaml:"candles_file,omitempty"`
}

type PnLConfig struct {
	CommissionPerContract float64 `json:"commission_per_contract" yaml:"commission_per_contract"`
	DetectTPSL            bool    `json:"detect_tp_sl" yaml:"detect_tp_sl"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	BotToken string `json:"bot_token,omitempty" yaml:"bot_token,omitempty"`
	ChatID   string `json:"chat_id,omitempty" yaml:"chat_id,omitempty"`
	APIBase  string `json:"api_base,omitempty" yaml:"api_base,omitempty"`
}

// Ready reports whether notifications can actually be sent.
func (t TelegramConfig) Ready() bool {
	return t.Enabled && t.BotToken != "" && t.ChatID != ""
}

// InstrumentConfig names a tracked instrument. Zero tick_size/point_value
// keep the built-in metadata.
type InstrumentConfig struct {
	Symbol     string  `json:"symbol" yaml:"symbol"`
	TickSize   float64 `json:"tick_size" yaml:"tick_size"`
	PointValue float64 `json:"point_value" yaml:"point_value"`
}

// Symbols returns the tracked instruments. Empty means every instrument
// traded on the account.
func (c *Config) Symbols() []string {
	var out []string
	for _, in := range c.Instruments {
		out = append(out, strings.TrimSpace(in.Symbol))
	}
	return out
}

// InstrumentOverrides returns the instruments that carry their own tick
// metadata, keyed by upper-cased symbol, for market.LookupInstrument.
func (c *Config) InstrumentOverrides() map[string]market.InstrumentMeta {
	out := make(map[string]market.InstrumentMeta)
	for _, in := range c.Instruments {
		if in.TickSize == 0 || in.PointValue == 0 {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(in.Symbol))] = market.InstrumentMeta{
			TickSize:   in.TickSize,
			PointValue: in.PointValue,
		}
	}
	return out
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
}

type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

type TracingConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type FeedConfig struct {
	WSURL string `json:"ws_url,omitempty" yaml:"ws_url,omitempty"`
}

const (
	EnvBacktest = "backtest"
	EnvSim      = "sim"
	EnvReal     = "real"

	DefaultQueueSize = 64
	DefaultTimeout   = 10 * time.Second
	DefaultAPIBase   = "https://api.telegram.org"
)

// LoadFromFile loads configuration from a file (YAML, falling back to JSON),
// applies environment overrides and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate rejects configurations that cannot be run at all. Values that
// can be repaired are handled by Normalize instead.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Upload.AccountName) == "" {
		return fmt.Errorf("upload.account_name is required")
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" {
			return fmt.Errorf("journal trades_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	for _, in := range c.Instruments {
		if in.Symbol == "" {
			return fmt.Errorf("instruments: symbol is required")
		}
		if in.TickSize < 0 || in.PointValue < 0 {
			return fmt.Errorf("instrument %s: tick_size and point_value must not be negative", in.Symbol)
		}
	}
	return nil
}

// Normalize repairs soft errors in place and returns a description of each
// change for the caller to log.
func (c *Config) Normalize() []string {
	var warnings []string

	env := NormalizeEnvironment(c.Upload.Environment, c.Upload.AccountName)
	if env != c.Upload.Environment {
		warnings = append(warnings, fmt.Sprintf("upload.environment %q resolved to %q", c.Upload.Environment, env))
		c.Upload.Environment = env
	}
	if c.Data.ContextBars < 0 {
		warnings = append(warnings, fmt.Sprintf("data.context_bars %d clamped to 0", c.Data.ContextBars))
		c.Data.ContextBars = 0
	}
	if c.Upload.QueueSize <= 0 {
		warnings = append(warnings, fmt.Sprintf("upload.queue_size %d replaced by %d", c.Upload.QueueSize, DefaultQueueSize))
		c.Upload.QueueSize = DefaultQueueSize
	}
	if c.Upload.Enabled && c.Upload.APIURL == "" {
		warnings = append(warnings, "upload.enabled is set but upload.api_url is empty; uploads disabled")
		c.Upload.Enabled = false
	}
	if c.Telegram.Enabled && !c.Telegram.Ready() {
		warnings = append(warnings, "telegram.enabled is set without bot_token/chat_id; notifications disabled")
		c.Telegram.Enabled = false
	}
	if c.Telegram.APIBase == "" {
		c.Telegram.APIBase = DefaultAPIBase
	}
	return warnings
}

// NormalizeEnvironment returns candidate when it is one of backtest, sim or
// real (case-insensitive). Otherwise the account name decides: "playback"
// means backtest, "sim" means sim, anything else is real.
func NormalizeEnvironment(candidate, account string) string {
	switch env := strings.ToLower(strings.TrimSpace(candidate)); env {
	case EnvBacktest, EnvSim, EnvReal:
		return env
	}

	name := strings.ToLower(account)
	switch {
	case strings.Contains(name, "playback"):
		return EnvBacktest
	case strings.Contains(name, "sim"):
		return EnvSim
	}
	return EnvReal
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Upload: UploadConfig{
			Enabled:     false,
			Environment: EnvSim,
			AccountName: "Sim101",
			Timeout:     DefaultTimeout.String(),
			QueueSize:   DefaultQueueSize,
		},
		Data: DataConfig{
			ContextBars:        30,
			IncludeExitContext: true,
		},
		PnL: PnLConfig{
			CommissionPerContract: 0,
			DetectTPSL:            true,
		},
		Telegram: TelegramConfig{
			APIBase: DefaultAPIBase,
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./tradeposter.sqlite",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
