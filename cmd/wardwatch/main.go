package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"wardwatch/internal/alerts"
	"wardwatch/internal/api"
	"wardwatch/internal/config"
	"wardwatch/internal/export"
	"wardwatch/internal/logging"
	"wardwatch/internal/model"
	"wardwatch/internal/monitor"
	"wardwatch/internal/storage"
	"wardwatch/internal/summary"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "wardwatch:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config file (json or yaml)")
	flag.Parse()

	var cfg *config.Manager
	if *configPath != "" {
		var err error
		cfg, err = config.NewManager(config.ResolvePath(*configPath))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.NewStaticManager(config.DefaultConfig())
	}
	current := cfg.Get()

	logger := logging.NewLogger(current.LogLevel)
	logger.Info("starting wardwatch", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(current.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := store.Init(initCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		defer store.Close()
		logger.Info("storage enabled", "driver", current.Storage.Driver)
	}

	exporter := export.NewPublisher(current.Export.Kafka, logging.For(logger, "export"))
	summarizer := summary.NewClient(current.Summarizer, logging.For(logger, "summary"))

	// A typed nil judge must not reach the evaluator as a non-nil interface.
	var judge alerts.Judge
	if j := summary.NewDetectionJudge(summarizer); j != nil {
		judge = j
	}

	svc := monitor.New(monitor.Options{
		Config:     cfg,
		Logger:     logger,
		Judge:      judge,
		Store:      store,
		Exporter:   exporter,
		Summarizer: summarizer,
	})
	svc.Start(ctx)

	if store != nil {
		restoreCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		restoreCameras(restoreCtx, store, svc, logger)
		cancel()
	}

	api.Start(ctx, cfg, svc, logging.For(logger, "api"), version)

	stopWatch := make(chan struct{})
	go cfg.Watch(5*time.Second,
		func(next *config.Config) {
			logger.Info("config reloaded", "log_level", next.LogLevel)
		},
		func(err error) {
			logger.Warn("config reload failed", "err", err)
		},
		stopWatch)

	<-ctx.Done()
	close(stopWatch)
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	svc.Stop(shutdownCtx)
	if err := exporter.Close(); err != nil {
		logger.Warn("exporter close failed", "err", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// restoreCameras re-registers cameras that were live when the process
// last stopped. A camera whose source no longer opens is marked offline
// rather than failing startup.
func restoreCameras(ctx context.Context, store storage.Store, svc *monitor.Service, logger *slog.Logger) {
	cams, err := store.ListActiveCameras(ctx)
	if err != nil {
		logger.Warn("camera restore query failed", "err", err)
		return
	}
	restored := 0
	for _, cam := range cams {
		if _, err := svc.AddCamera(ctx, cam); err != nil {
			logger.Warn("camera restore failed", "camera_id", cam.ID, "err", err)
			if err := store.UpdateCameraStatus(ctx, cam.ID, model.CameraOffline); err != nil {
				logger.Warn("camera status update failed", "camera_id", cam.ID, "err", err)
			}
			continue
		}
		restored++
	}
	if restored > 0 {
		logger.Info("cameras restored", "count", restored)
	}
}
