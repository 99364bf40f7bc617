package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/dbfleet/internal/application"
	"github.com/JonMunkholm/dbfleet/internal/config"
	"github.com/JonMunkholm/dbfleet/internal/core"
	"github.com/JonMunkholm/dbfleet/internal/logging"
	"github.com/JonMunkholm/dbfleet/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logCloser := logging.Setup(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"run_max_concurrent", cfg.Runs.MaxConcurrent,
		"exec_log", cfg.ExecLog.Enabled(),
		"schedule", cfg.Schedule.Enabled(),
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()
	app, err := application.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	limiter := core.NewRunLimiter(cfg.Runs.MaxConcurrent, cfg.Runs.MaxWait)

	var registry web.Registry
	if app.Databases != nil {
		registry = app.Databases
	}
	server := web.NewServer(app.Service, registry, limiter, cfg)

	// Background jobs stop with jobCtx
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	var schedulerDone <-chan struct{}
	if cfg.Schedule.Enabled() {
		done, err := app.Service.StartScheduler(jobCtx, core.ScheduledCheck{
			Spec:      cfg.Schedule.Cron,
			File:      cfg.Schedule.File,
			ReportDir: cfg.Fleet.ReportDir,
			Dialect:   core.AutoDialect,
		})
		if err != nil {
			slog.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		schedulerDone = done
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for runs to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("runs did not complete in time", "error", err)
			}
		}
		if cfg.Schedule.Enabled() {
			select {
			case <-schedulerDone:
			case <-shutdownCtx.Done():
				slog.Warn("scheduled check did not finish in time")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("server stopped")
}
