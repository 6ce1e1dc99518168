// main package for the otto-service
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AS042971/otto/internal/app"
	"github.com/AS042971/otto/internal/config"
	"github.com/AS042971/otto/internal/objectstore"
	"github.com/AS042971/otto/internal/server"
	"github.com/AS042971/otto/internal/tts"
	"github.com/AS042971/otto/internal/worker"
	"github.com/book-expert/logger"
)

const shutdownTimeout = 10 * time.Second

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), "otto-service-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, "otto-service.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, finalLog)
}

// serve runs the HTTP server, and the NATS worker when nats.url is set, until
// ctx is cancelled or one of them fails.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	var conn *app.Connection

	if cfg.NATS.URL != "" {
		var err error

		conn, err = app.Connect(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer conn.Close()
	}

	synthesizer, err := app.NewSynthesizer(cfg, conn, log)
	if err != nil {
		return err
	}

	var natsWorker *worker.NatsWorker

	if conn != nil {
		natsWorker, err = newWorker(cfg, conn, synthesizer, log)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	running := 1

	httpServer := server.New(synthesizer, app.ServerOptions(cfg), log)
	address := app.ListenAddress(cfg, synthesizer.Voicebank())

	go func() { errs <- httpServer.Listen(address) }()

	if natsWorker != nil {
		running++

		go func() { errs <- natsWorker.Run(ctx) }()
	}

	log.System("Otto service initialized. HTTP on %s, NATS subject: %q", address, cfg.NATS.TextProcessedSubject)

	var firstErr error

	select {
	case <-ctx.Done():
	case firstErr = <-errs:
		running--
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownErr := httpServer.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		log.Error("HTTP shutdown failed: %v", shutdownErr)
	}

	for range running {
		firstErr = errors.Join(firstErr, <-errs)
	}

	log.System("Otto service stopped.")

	return firstErr
}

func newWorker(cfg *config.Config, conn *app.Connection, synthesizer *tts.Synthesizer, log *logger.Logger) (*worker.NatsWorker, error) {
	textStore, err := objectstore.New(conn.JetStream, cfg.NATS.TextObjectStore)
	if err != nil {
		return nil, fmt.Errorf("failed to open text object store: %w", err)
	}

	audioStore, err := objectstore.New(conn.JetStream, cfg.NATS.AudioObjectStore)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio object store: %w", err)
	}

	return worker.NewNatsWorker(conn.Conn, cfg.NATS.TextProcessedSubject, cfg.NATS.QueueGroup,
		textStore, audioStore, synthesizer, log)
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
