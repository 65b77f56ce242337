package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/markdave123-py/libassist/internal/app"
	"github.com/markdave123-py/libassist/internal/config"
	"github.com/markdave123-py/libassist/internal/logger"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		Output:     os.Stdout,
		JSON:       cfg.LogJSON,
		TimeFormat: time.RFC3339,
	})

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Handle SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := application.Start(ctx); err != nil {
		log.Error("background workers failed to start", "error", err)
		application.Close()
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- application.Server.Start() }()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Error("server error", "error", err)
		}
		stop()
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
