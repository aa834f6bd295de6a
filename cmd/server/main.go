package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pricescout/backend/config"
	"github.com/pricescout/backend/internal/app"
	httpDelivery "github.com/pricescout/backend/internal/delivery/http"
	"github.com/pricescout/backend/internal/logging"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg)
	logger.Info("starting pricescout",
		"version", httpDelivery.Version,
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"cache", cfg.Cache.Type)

	service, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to assemble service", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = service.Run(ctx, 10*time.Second)
	stop()
	if err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
