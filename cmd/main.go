package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"oppwapay/internal/bootstrap"
	"oppwapay/internal/config"
	cronpkg "oppwapay/internal/cron"
	"oppwapay/internal/dedup"
	"oppwapay/internal/payment"
	"oppwapay/internal/pkg/telegram"
	"oppwapay/internal/repository"
	"oppwapay/internal/router"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	registry := payment.DefaultRegistry()

	if hasArg("--bootstrap-db") {
		if err := runDBBootstrap(logger, registry); err != nil {
			logger.Fatal("Database bootstrap failed", zap.Error(err))
		}
		logger.Info("Database bootstrap completed")
		return
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.Server.Env == "development" {
		if devLogger, err := zap.NewDevelopment(); err == nil {
			logger = devLogger
			defer logger.Sync()
		}
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.MigrateAndSeed(db, registry); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	// --- Result Deduper (Redis with in-memory fallback) ---
	deduper, dedupErr := dedup.New(cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.DB, cfg.Redis.DedupTTL)
	if dedupErr != nil {
		logger.Warn("Redis unavailable for result dedup, using in-memory fallback", zap.Error(dedupErr))
	}

	// --- Operator alerts ---
	alerter := telegram.NewBotAPI(cfg.Alerts.BotToken, cfg.Alerts.ChatID, logger)
	if !alerter.Enabled() {
		logger.Info("Operator alerts disabled (ALERT_BOT_TOKEN / ALERT_CHAT_ID not set)")
	}

	// --- Gateway ---
	mode, err := payment.ParseClassifierMode(cfg.Gateway.ClassifierMode)
	if err != nil {
		logger.Fatal("Invalid classifier mode", zap.Error(err))
	}
	client := payment.NewClient(payment.ClientOptions{
		Timeout:    cfg.Gateway.Timeout,
		RetryCount: cfg.Gateway.RetryCount,
		TestURL:    cfg.Gateway.TestURL,
		LiveURL:    cfg.Gateway.LiveURL,
	}, logger)
	var adapterOpts []payment.AdapterOption
	if cfg.Gateway.MatchNDC {
		adapterOpts = append(adapterOpts, payment.WithCheckoutReferenceMatch())
	}
	adapter := payment.NewAdapter(
		repository.NewLedger(db),
		client,
		payment.NewClassifier(mode),
		deduper,
		alerter,
		logger,
		adapterOpts...,
	)
	logger.Info("Payment adapter ready",
		zap.String("classifier_mode", string(mode)),
		zap.Bool("match_ndc", cfg.Gateway.MatchNDC),
		zap.Duration("gateway_timeout", cfg.Gateway.Timeout))

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	// --- Routes ---
	router.Setup(e, db, adapter, registry, logger, router.Options{
		PublicURL:    cfg.Server.PublicURL,
		APIKey:       cfg.API.Key,
		HashFilePath: cfg.API.HashFile,
	})

	// --- Cron Scheduler ---
	cronRepos := &cronpkg.CronRepos{
		Payments: repository.NewPaymentRepository(db),
		Settings: repository.NewSettingRepository(db),
	}
	scheduler := cronpkg.New(cfg.Cron, cronRepos, adapter, registry, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start cron scheduler", zap.Error(err))
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting oppwapay server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

func runDBBootstrap(logger *zap.Logger, registry *payment.Registry) error {
	dbCfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return err
	}
	db, err := config.NewDatabase(dbCfg, logger)
	if err != nil {
		return err
	}
	if err := bootstrap.MigrateAndSeed(db, registry); err != nil {
		return err
	}
	logger.Info("Schema migration and default seed completed")
	return nil
}
