package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"raidguard/internal/api"
	"raidguard/internal/config"
	"raidguard/internal/engine"
	"raidguard/internal/ingest"
	"raidguard/internal/journal"
	"raidguard/internal/logging"
	"raidguard/internal/stats"
	"raidguard/internal/storage"
)

const version = "1.2.0"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "raidguard.yml", "path to raidguard config")
	flag.Parse()

	manager, err := config.NewManager(config.ResolvePath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	cfg := manager.Get()
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage error", "err", err)
		return 1
	}
	if err := store.Init(ctx); err != nil {
		logger.Error("storage init failed", "err", err)
		return 1
	}

	statsStore := stats.NewStore()
	journalStore := journal.NewStore(cfg.Journal.StoreLimit)
	eng, err := engine.New(ctx, cfg, logger, statsStore, journalStore, store)
	if err != nil {
		logger.Error("engine init failed", "err", err)
		return 1
	}
	eng.Start(ctx)

	parser := ingest.NewParser()
	ingest.StartKafka(ctx, manager, parser, eng, logger)
	ingest.StartTCP(ctx, manager, parser, eng, logger)
	api.Start(ctx, manager, eng, journalStore, statsStore, logger, version)

	go manager.Watch(3*time.Second,
		func(next *config.Config) {
			eng.UpdateConfig(next)
			logger.Info("configuration reloaded", "path", manager.Path())
		},
		func(err error) {
			logger.Warn("config reload failed", "err", err)
		},
		ctx.Done())

	logger.Info("raidguard started", "version", version, "storage", cfg.Storage.Driver)
	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	code := 0
	if err := eng.Close(shutdownCtx); err != nil {
		logger.Error("shutdown flush failed", "err", err)
		code = 1
	}
	if err := store.Close(); err != nil {
		logger.Warn("storage close error", "err", err)
	}
	logger.Info("raidguard stopped")
	return code
}
