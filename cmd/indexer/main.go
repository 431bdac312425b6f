// Package main is the entry point of the quorum indexer.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quorum-indexer/internal/config"
	"quorum-indexer/internal/correlator"
	"quorum-indexer/internal/hive"
	"quorum-indexer/internal/indexer"
	"quorum-indexer/internal/logger"
	"quorum-indexer/internal/status"
	"quorum-indexer/internal/store"
	"quorum-indexer/internal/tui"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	tuiChannelBufferSize = 8
	tuiRefreshInterval   = time.Second
	tuiCloseDelay        = 100 * time.Millisecond
	shutdownTimeout      = 10 * time.Second
)

func main() {
	// Try to load .env from CWD if present; otherwise use environment as-is
	if _, statErr := os.Stat(".env"); statErr == nil {
		_ = godotenv.Load(".env")
	}

	cfg := config.Load()

	// The dashboard owns the terminal, so logs go to a file while it runs
	var logWriter io.Writer = os.Stdout
	if cfg.TUI {
		logFile, err := os.OpenFile("indexer.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			defer logFile.Close()
			logWriter = logFile
			fmt.Fprintf(os.Stderr, "Logs written to indexer.log\n")
		} else {
			fmt.Fprintf(os.Stderr, "Warning: failed to open log file, logs will go to stdout (may interfere with TUI): %v\n", err)
		}
	}
	log := logger.NewWithWriter(logger.Options{Level: cfg.LogLevel, Encoding: cfg.LogEncoding, Writer: logWriter})
	defer func() { _ = log.Sync() }()

	log.Info("quorum indexer starting", zap.String("config", cfg.DebugString()))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gormDB, err := store.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	if err := store.AutoMigrate(gormDB); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("migrations applied")

	st, err := store.New(gormDB, cfg.ElectionCacheSize)
	if err != nil {
		log.Fatal("failed to init store", zap.Error(err))
	}
	history := hive.NewClient(cfg.HafahURL(), cfg.HTTPTimeout, log.Named("hafah"))

	intervals := correlator.DefaultIntervals()
	ix := indexer.New(log,
		correlator.NewBlockCorrelator(st, history, intervals, log),
		correlator.NewEpochCorrelator(st, history, cfg.NetID, intervals, log),
	)

	var srv *status.Server
	if cfg.StatusAddr != "" {
		srv = status.NewServer(cfg.StatusAddr, ix, log.Named("status"))
		srv.Start()
	}

	var tuiUpdateCh chan []correlator.Status
	if cfg.TUI {
		tuiUpdateCh = make(chan []correlator.Status, tuiChannelBufferSize)
		go func() {
			header := tui.Header{HiveAPI: cfg.HiveAPI, NetID: cfg.NetID, Started: time.Now()}
			if err := tui.Run(header, tuiUpdateCh); err != nil {
				log.Error("TUI error", zap.Error(err))
			}
			// TUI exited, cancel context to trigger shutdown
			cancel()
		}()
		go ix.Publish(ctx, tuiUpdateCh, tuiRefreshInterval)
	}

	ix.Start(ctx)

	// A fatal correlator leaves the other one running; the process ends
	// once both have exited.
	waitErr := make(chan error, 1)
	go func() { waitErr <- ix.Wait() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		ix.Stop()
		if err := <-waitErr; err != nil {
			log.Error("correlator stopped on error", zap.Error(err))
		}
	case err := <-waitErr:
		if err != nil {
			log.Error("correlators stopped on error", zap.Error(err))
		}
		cancel()
	}

	if srv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("status server shutdown", zap.Error(err))
		}
		cancelShutdown()
	}

	if tuiUpdateCh != nil {
		// Publish closes the channel on cancel; give the TUI a moment to quit
		time.Sleep(tuiCloseDelay)
	}
}
