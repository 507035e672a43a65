package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/tradeposter/config"
	"github.com/rustyeddy/tradeposter/engine"
	"github.com/rustyeddy/tradeposter/journal"
	"github.com/rustyeddy/tradeposter/logger"
	"github.com/rustyeddy/tradeposter/metrics"
	"github.com/rustyeddy/tradeposter/report"
	"github.com/rustyeddy/tradeposter/telemetry"
)

// app is the wired pipeline shared by run and replay.
type app struct {
	cfg        *config.Config
	reg        *prometheus.Registry
	metrics    *metrics.Metrics
	tracing    *telemetry.Provider
	journal    journal.Journal
	dispatcher *report.Dispatcher
	router     *engine.Router
	server     *http.Server
	log        *logrus.Entry
}

// loadConfig reads the env file and config, starts logging and applies
// soft repairs, logging each one.
func loadConfig(path string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	for _, w := range cfg.Normalize() {
		logger.Component("config").Warn(w)
	}
	return cfg, nil
}

func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "csv":
		return journal.NewCSV(cfg.TradesFile)
	case "sqlite":
		return journal.NewSQLite(cfg.DBPath)
	}
	return nil, nil
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{
		cfg: cfg,
		reg: prometheus.NewRegistry(),
		log: logger.Component("app"),
	}
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.reg)

	tp, err := telemetry.Init(cfg.Tracing.Enabled, version, nil)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracing = tp

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	a.journal = j

	timeout := cfg.Upload.TimeoutDuration(config.DefaultTimeout)
	opts := report.Options{
		QueueSize: cfg.Upload.QueueSize,
		Timeout:   timeout,
		Settings: report.Settings{
			Environment:        cfg.Upload.Environment,
			ContextBars:        cfg.Data.ContextBars,
			IncludeExitContext: cfg.Data.IncludeExitContext,
			Commission:         cfg.PnL.CommissionPerContract,
		},
		Journal: j,
		Tracer:  tp.Tracer(),
		Metrics: a.metrics,
		Log:     logger.Component("report"),
	}
	if cfg.Upload.Enabled {
		opts.Uploader = report.NewHTTPUploader(cfg.Upload.APIURL, timeout)
	}
	if cfg.Telegram.Enabled {
		opts.Notifier = report.NewTelegram(cfg.Telegram.APIBase, cfg.Telegram.BotToken, cfg.Telegram.ChatID, timeout)
	}
	a.dispatcher = report.NewDispatcher(opts)

	// nothing would consume a trade; keep the router inert
	enabled := opts.Journal != nil || opts.Uploader != nil || opts.Notifier != nil
	a.router = engine.NewRouter(engine.RouterOptions{
		Account:       cfg.Upload.AccountName,
		KnownAccounts: cfg.Upload.KnownAccounts,
		Instruments:   cfg.Symbols(),
		Enabled:       enabled,
		DetectTPSL:    cfg.PnL.DetectTPSL,
		Overrides:     cfg.InstrumentOverrides(),
		Sink:          a.dispatcher,
		Metrics:       a.metrics,
		Log:           logger.Component("engine"),
	})

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(a.reg))
		a.server = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.WithError(err).Error("metrics server stopped")
			}
		}()
		a.log.WithField("addr", cfg.Metrics.Addr).Info("serving metrics")
	}

	a.log.WithFields(logrus.Fields{
		"account":     cfg.Upload.AccountName,
		"environment": cfg.Upload.Environment,
		"upload":      opts.Uploader != nil,
		"telegram":    opts.Notifier != nil,
		"journal":     journalType(cfg),
	}).Info("pipeline ready")
	return a, nil
}

// close drains the dispatcher and releases everything newApp opened.
func (a *app) close(ctx context.Context) {
	if err := a.dispatcher.Close(ctx); err != nil {
		a.log.WithError(err).Warn("report queue not drained")
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.WithError(err).Warn("close journal")
		}
	}
	if a.server != nil {
		_ = a.server.Shutdown(ctx)
	}
	if err := a.tracing.Shutdown(ctx); err != nil {
		a.log.WithError(err).Warn("flush traces")
	}
}
