package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketflow/internal/config"
	"ticketflow/internal/constants"
	"ticketflow/internal/database"
	"ticketflow/internal/metrics"
	"ticketflow/internal/models"
	"ticketflow/internal/realtime"
	"ticketflow/internal/service"
	"ticketflow/internal/tracing"
	"ticketflow/pkg/whatsapp"
	"ticketflow/pkg/whatsapp/types"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes phone numbers and chat ids)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("ticketflow %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	configureLogLevel(logger, cfg.LogLevel, *verbose)

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting ticketflow")

	tracingManager := tracing.NewTracingManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := metrics.GetRegistry()
	hub := realtime.NewHub(logger, registry)
	listener := service.NewListener(db, hub, *cfg, registry, logger, *verbose)
	defer listener.Close()

	webhook := whatsapp.NewWebhookHandler()
	channels, err := db.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}
	if len(channels) == 0 {
		logger.Warn("No channels configured; load a seed file with the seed command")
	}
	for _, ch := range channels {
		listener.Bind(newSession(cfg, ch, logger), webhook)
		logger.WithFields(logrus.Fields{
			"channel_id": ch.ID,
			"session":    ch.SessionName,
			"queues":     len(ch.Queues),
		}).Info("Channel session bound")
	}

	server := NewServer(cfg, webhook, hub, db, registry, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

// configureLogLevel applies -verbose or the configured level. Without
// -verbose the level is capped at info so numbers never reach debug logs.
func configureLogLevel(logger *logrus.Logger, configured string, verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
		return
	}

	level, err := logrus.ParseLevel(configured)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", configured)
		level = logrus.InfoLevel
	}
	if level > logrus.InfoLevel {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func openDatabase(ctx context.Context, cfg *models.Config, logger *logrus.Logger) (*database.Database, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond
	bo.MaxInterval = time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond

	var db *database.Database
	err := backoff.Retry(func() error {
		var initErr error
		db, initErr = database.New(ctx, cfg.Database)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	}, backoff.WithContext(backoff.WithMaxRetries(bo, constants.DefaultDatabaseRetryAttempts-1), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	return db, nil
}

func newSession(cfg *models.Config, ch *models.Channel, logger *logrus.Logger) *whatsapp.Client {
	return whatsapp.NewClient(types.ClientConfig{
		BaseURL:     cfg.Bridge.APIBaseURL,
		APIKey:      cfg.Bridge.APIKey,
		SessionName: ch.SessionName,
		ChannelID:   ch.ID,
		Timeout:     time.Duration(cfg.Bridge.TimeoutMs) * time.Millisecond,
		SendRate:    cfg.Bridge.SendRatePS,
		SendBurst:   cfg.Bridge.SendBurst,
		Insecure:    cfg.Bridge.AllowUnsafe,

		BreakerFailures: uint32(cfg.Bridge.BreakerFailures),
		BreakerCooldown: time.Duration(cfg.Bridge.BreakerCooldownSec) * time.Second,
		Logger:          logger,
	})
}
