package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-simulator-go/internal/api"
	"market-simulator-go/internal/config"
	"market-simulator-go/internal/database"
	"market-simulator-go/internal/ledger"
	"market-simulator-go/internal/logger"
	"market-simulator-go/internal/market"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database (migrates schema and seeds instruments/users)
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Wire up the engine and the ledger. The variate source is injected
	// here; tests supply fixed sequences instead.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	engine := market.NewEngine(log.Named("market"), db, rng)
	ldg := ledger.NewLedger(log.Named("ledger"), db)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Optional auto-advance loop
	if cfg.Market.TickInterval > 0 {
		go engine.Run(ctx, time.Duration(cfg.Market.TickInterval)*time.Second)
	}

	// Start the API server and wait for shutdown
	server := api.NewServer(&cfg, log, engine, ldg)
	server.Start()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server cleanly", zap.Error(err))
	}

	log.Info("Server has been shut down.")
}
