package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsvigil/vigil/internal/api"
	"github.com/opsvigil/vigil/internal/config"
	"github.com/opsvigil/vigil/internal/executor/dbcheck"
	"github.com/opsvigil/vigil/internal/executor/httpcheck"
	"github.com/opsvigil/vigil/internal/metrics"
	"github.com/opsvigil/vigil/internal/monitor"
	"github.com/opsvigil/vigil/internal/notify"
	"github.com/opsvigil/vigil/internal/orchestrator"
	"github.com/opsvigil/vigil/internal/scheduler"
	"github.com/opsvigil/vigil/internal/sla"
	"github.com/opsvigil/vigil/internal/storage/sqlite"
)

const (
	defaultSchedule    = "@every 1m"
	defaultSLAInterval = 5 * time.Minute
)

func main() {
	cfg, err := parseConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup failed: %v\n", err)
		os.Exit(1)
	}

	logger.Info().
		Str("addr", cfg.HTTPAddr).
		Str("config_dir", cfg.ConfigDir).
		Msg("starting vigil server")

	// Load and validate monitoring documents
	monCfg, validationErrors := monitor.LoadConfig(cfg.ConfigDir)
	if len(validationErrors) > 0 {
		for _, e := range validationErrors {
			logger.Error().Str("file", e.File).Str("path", e.Path).Msg(e.Message)
		}
		logger.Fatal().Int("errors", len(validationErrors)).Msg("invalid monitoring configuration")
	}

	aggregator := metrics.NewAggregator()

	var routerOpts []notify.RouterOption
	if monCfg.Location != "" {
		loc, err := time.LoadLocation(monCfg.Location)
		if err != nil {
			logger.Fatal().Err(err).Str("location", monCfg.Location).Msg("invalid business hours location")
		}
		routerOpts = append(routerOpts, notify.WithLocation(loc))
	}
	router := notify.NewRouter(monCfg.Channels, logger, routerOpts...)

	executors := map[monitor.CheckType]orchestrator.Executor{
		monitor.CheckTypeHTTP:     httpcheck.NewExecutor(nil, logger),
		monitor.CheckTypeDatabase: dbcheck.NewExecutor(logger),
	}

	jobName := engineJobName(monCfg)
	engine := orchestrator.NewEngine(monCfg.Checks, executors, aggregator, router, logger)
	engine.SetJobName(jobName)
	engine.SetMaxConcurrency(monCfg.Engine.MaxConcurrency)
	engine.SetEventSink(monitor.NewLogSink(logger))
	if monCfg.Engine.DefaultCheckTimeout != "" {
		timeout, err := monitor.ParseDuration(monCfg.Engine.DefaultCheckTimeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid default check timeout")
		}
		engine.SetDefaultTimeout(timeout)
	}

	evaluator := sla.NewEvaluator(monCfg.SLA.Definitions, aggregator, router, logger)
	evaluator.SetWarningMargin(monCfg.SLA.WarningMargin)
	evaluator.SetEventSink(monitor.NewLogSink(logger))

	var store *sqlite.Store
	if cfg.DBPath != "" {
		store, err = sqlite.NewStore(cfg.DBPath)
		if err != nil {
			logger.Fatal().Err(err).Str("db", cfg.DBPath).Msg("failed to open history store")
		}
		defer store.Close()
		engine.SetResultSink(store)
		evaluator.SetViolationSink(store)
		logger.Info().Str("db", cfg.DBPath).Msg("history store enabled")
	}

	sched := scheduler.New(logger)
	sched.SetHeartbeatRecorder(aggregator)

	schedule := monCfg.Engine.Schedule
	if schedule == "" {
		schedule = defaultSchedule
	}
	if err := sched.AddJob(jobName, schedule, engine.Execute); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule monitoring job")
	}

	if len(monCfg.SLA.Definitions) > 0 {
		interval := defaultSLAInterval
		if monCfg.SLA.EvaluationInterval != "" {
			d, err := monitor.ParseDuration(monCfg.SLA.EvaluationInterval)
			if err != nil {
				logger.Fatal().Err(err).Msg("invalid sla evaluation interval")
			}
			interval = d
		}
		evaluate := func(ctx context.Context) error {
			return evaluator.EvaluateAll(ctx, time.Now())
		}
		if err := sched.AddInterval("sla-evaluation", interval, evaluate); err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule sla evaluation")
		}
	}

	apiServer := api.NewServer(engine, aggregator, evaluator, router, cfg.HTTPAddr, logger)
	if store != nil {
		apiServer.SetHistoryStore(store)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- apiServer.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal().Err(err).Msg("server error")

	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, cancelTimeout := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancelTimeout()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("error shutting down api server")
		}

		cancel()
		sched.Stop()

		logger.Info().Msg("shutdown complete")
	}
}

func parseConfig() (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, err
	}

	flag.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	flag.StringVar(&cfg.ConfigDir, "config-dir", cfg.ConfigDir, "Directory containing monitoring YAML documents")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite history database path (empty disables persistence)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (trace|debug|info|warn|error)")
	flag.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Human-readable console log output")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown timeout")
	flag.Parse()

	return cfg, nil
}

func newLogger(cfg config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level: %w", err)
	}

	var out io.Writer = os.Stderr
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("app", "vigil").Logger(), nil
}

func engineJobName(monCfg monitor.Config) string {
	if monCfg.Engine.JobName != "" {
		return monCfg.Engine.JobName
	}
	return "monitoring"
}
