// Package main is the entry point for the scan collector service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/api"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/callback"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/config"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/logging"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/messaging"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/metrics"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/publisher"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/scanner"
)

const reportTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Initialize logger
	sugar, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = sugar.Sync() }()

	sugar.Info("Starting scan collector service")
	sugar.Infow("Configuration loaded",
		"listener", cfg.Listener.Address(),
		"api_port", cfg.Server.Port,
		"scanner_enabled", cfg.Scanner.Enabled,
		"subnets", cfg.Scanner.Subnets,
		"rabbitmq_enabled", cfg.RabbitMQ.Enabled,
	)

	m := metrics.New()

	// Initialize RabbitMQ publisher
	var sink messaging.Sink
	if cfg.RabbitMQ.Enabled {
		pub, err := publisher.New(cfg.RabbitMQ, sugar)
		if err != nil {
			sugar.Fatalf("Failed to initialize publisher: %v", err)
		}
		defer func() { _ = pub.Close() }()
		sink = pub
	}

	proc := messaging.NewProcessor(cfg.Listener.BufferSize, sink, m, sugar)
	server := messaging.NewServer(cfg.Listener, proc, m, sugar)

	// Initialize scanner
	var (
		scan       *scanner.Scanner
		scanStatus api.ScanStatus
		initiate   func()
	)
	if cfg.Scanner.Enabled {
		reporter := callback.NewReporter(cfg.Scanner.ReportAddress, reportTimeout, cfg.Listener.BufferSize, m, sugar)
		scan = scanner.New(cfg.Scanner, reporter, m, sugar)
		scanStatus = scan
		initiate = scan.Initiate
	}

	apiServer := api.New(cfg.Server, server, scanStatus, m, sugar)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start report listener; the scan is initiated once it is bound
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(ctx, initiate)
	}()

	// Start HTTP server in goroutine
	go func() {
		sugar.Infof("HTTP server listening on port %d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Errorf("HTTP server error: %v", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			sugar.Fatalw("Messaging server failed", "error", err)
		}
	}

	sugar.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scan != nil {
		scan.Stop()
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		sugar.Errorf("Server forced to shutdown: %v", err)
	}

	stop()
	if err := server.Close(); err != nil {
		sugar.Warnw("Failed to close messaging server", "error", err)
	}

	sugar.Info("Server stopped")
	return nil
}
