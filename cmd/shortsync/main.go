package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/jmoiron/sqlx"

	"shortsync/internal/chooser"
	"shortsync/internal/config"
	"shortsync/internal/domain"
	"shortsync/internal/ffmpeg"
	"shortsync/internal/metrics"
	"shortsync/internal/publisher"
	"shortsync/internal/scheduler"
	"shortsync/internal/service"
	"shortsync/internal/storage/sqlstore"
	"shortsync/internal/ytdlp"
)

const usage = `usage: shortsync [-config path] [-once] [command]

commands:
  run                 sync all configured channels (default)
  channels            print persisted channel states
  policy <ask|skip>   set the default handling of normal videos
`

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single batch and exit")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database", "driver", cfg.Database.Driver)

	command := "run"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	switch command {
	case "run":
		err = run(ctx, cfg, db, *once, logger)
	case "channels":
		err = printChannels(ctx, db, os.Stdout)
	case "policy":
		if flag.NArg() != 2 {
			flag.Usage()
			os.Exit(2)
		}
		err = setPolicy(ctx, db, domain.NormalsPolicy(flag.Arg(1)))
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, db *sqlx.DB, once bool, logger *slog.Logger) error {
	channelStore := sqlstore.NewChannelStore(db)
	acquisitionStore := sqlstore.NewAcquisitionStore(db)
	settingsStore := sqlstore.NewSettingsStore(db)
	txManager := sqlstore.NewTransactionManager(db)

	ytdlpClient := ytdlp.New(ytdlp.Config{
		Path:           cfg.Ytdlp.Path,
		MaxAttempts:    cfg.Ytdlp.Retry.MaxAttempts,
		InitialBackoff: cfg.Ytdlp.Retry.InitialBackoff,
		MaxBackoff:     cfg.Ytdlp.Retry.MaxBackoff,
	}, logger)
	transcoder := ffmpeg.New(cfg.FFmpeg.Path, logger)

	orchestrator := service.NewOrchestrator(ytdlpClient, transcoder, service.OrchestratorConfig{
		OutputDir:        cfg.Acquire.OutputDir,
		TempDir:          cfg.Acquire.TempDir,
		Language:         cfg.Acquire.Language,
		FetchTimeout:     cfg.Ytdlp.FetchTimeout,
		TranscodeTimeout: cfg.FFmpeg.Timeout,
	}, logger)
	discovery := service.NewDiscovery(ytdlpClient, cfg.Ytdlp.ListTimeout, logger)

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled() {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect publisher: %w", err)
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	runner := service.NewChannelRunner(
		discovery,
		orchestrator,
		channelStore,
		acquisitionStore,
		settingsStore,
		newPrompt(),
		pub,
		cfg.Profile(),
		logger,
		cfg.Sync,
	)
	driver := service.NewBatchDriver(channelStore, txManager, runner, cfg.Sync.ChannelWorkers, logger)

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	logger.Info("starting shortsync",
		"channels", len(cfg.Channels),
		"profile", cfg.Acquire.Profile,
		"views", cfg.Sync.Views,
		"interval", cfg.Sync.Interval,
	)

	if once || cfg.Sync.Interval <= 0 {
		report, err := driver.ReconcileAndRun(ctx, cfg.Channels)
		if err != nil {
			return err
		}
		if failed := report.Failed(); failed > 0 {
			return fmt.Errorf("%d of %d channels failed", failed, len(report.Channels))
		}
		return nil
	}

	return scheduler.NewScheduler(driver, cfg.Channels, cfg.Sync.Interval, logger).Start(ctx)
}

func printChannels(ctx context.Context, db *sqlx.DB, out io.Writer) error {
	channels, err := sqlstore.NewChannelStore(db).List(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	counts, err := sqlstore.NewAcquisitionStore(db).CountByChannel(ctx)
	if err != nil {
		return fmt.Errorf("count acquisitions: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "URL\tACTIVE\tLAST SEEN\tDATE\tACQUIRED")
	for _, ch := range channels {
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%d\n",
			ch.URL, ch.Active, orDash(ch.Cursor()), orDash(ch.CursorDate()), counts[ch.URL])
	}
	return w.Flush()
}

func setPolicy(ctx context.Context, db *sqlx.DB, policy domain.NormalsPolicy) error {
	if !policy.Valid() {
		return fmt.Errorf("invalid policy %q: want ask or skip", policy)
	}
	if err := sqlstore.NewSettingsStore(db).Set(ctx, domain.SettingNormalsPolicy, string(policy)); err != nil {
		return fmt.Errorf("save policy: %w", err)
	}
	fmt.Printf("normals policy set to %s\n", policy)
	return nil
}

// newPrompt asks on stderr; stdout carries the JSON log stream.
func newPrompt() *chooser.Prompt {
	return chooser.NewPrompt(os.Stdin, os.Stderr)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
