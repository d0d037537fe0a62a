// Frontier is a Monte Carlo portfolio optimization service: it caches
// daily price history locally, samples random long-only portfolios, and
// serves the max-Sharpe allocation plus charts over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/abidamassi/frontier/internal/clients/yahoo"
	"github.com/abidamassi/frontier/internal/config"
	"github.com/abidamassi/frontier/internal/database"
	"github.com/abidamassi/frontier/internal/modules/charts"
	chartshandlers "github.com/abidamassi/frontier/internal/modules/charts/handlers"
	"github.com/abidamassi/frontier/internal/modules/historical"
	historicalhandlers "github.com/abidamassi/frontier/internal/modules/historical/handlers"
	"github.com/abidamassi/frontier/internal/modules/optimization"
	optimizationhandlers "github.com/abidamassi/frontier/internal/modules/optimization/handlers"
	"github.com/abidamassi/frontier/internal/modules/snapshots"
	"github.com/abidamassi/frontier/internal/reliability"
	"github.com/abidamassi/frontier/internal/scheduler"
	"github.com/abidamassi/frontier/internal/server"
	"github.com/abidamassi/frontier/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	defaultSymbols, err := optimizationhandlers.ParseTickers(cfg.DefaultSymbols)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid DEFAULT_SYMBOLS")
	}
	historyRange := historicalhandlers.RangeDuration(cfg.HistoryRange)

	// Databases: price history is durable, snapshots are rebuildable
	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	// Repositories and services
	priceRepo := historical.NewRepository(historyDB.Conn(), log)
	if err := priceRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price schema")
	}
	snapshotRepo := snapshots.NewRepository(cacheDB.Conn(), log)
	if err := snapshotRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshot schema")
	}

	yahooClient := yahoo.NewClient(log)
	historicalService := historical.NewService(priceRepo, yahooClient, log)
	optimizationService := optimization.NewService(historicalService, log)
	chartsService := charts.NewService(optimizationService, snapshotRepo, log)

	// Handlers
	optimizationHandler := optimizationhandlers.NewHandler(optimizationService, snapshotRepo,
		optimizationhandlers.Defaults{
			Symbols:      defaultSymbols,
			RiskFreePct:  cfg.DefaultRiskFree,
			Scenarios:    cfg.DefaultScenarios,
			Seed:         cfg.Seed,
			HistoryRange: historyRange,
		}, log)
	historicalHandler := historicalhandlers.NewHandler(historicalService, defaultSymbols, cfg.HistoryRange, log)
	chartsHandler := chartshandlers.NewHandler(chartsService, defaultSymbols, historyRange, log)

	// Background jobs
	sched := scheduler.New(log)
	syncJob := scheduler.NewSyncPricesJob(historicalService, defaultSymbols, historyRange, log)
	if err := sched.AddJob(cfg.SyncSchedule, syncJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register price sync job")
	}

	if cfg.Backup.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		r2Client, err := reliability.NewR2Client(ctx, reliability.R2Config{
			AccountID:       cfg.Backup.AccountID,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
			Bucket:          cfg.Backup.Bucket,
		}, log)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create R2 client")
		}
		backupService := reliability.NewBackupService(r2Client,
			[]*database.DB{historyDB, cacheDB}, cfg.DataDir, cfg.Backup.RetainCount, log)
		if err := sched.AddJob(cfg.Backup.Schedule, scheduler.NewBackupJob(backupService, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	} else {
		log.Info().Msg("R2 backup disabled (credentials not configured)")
	}

	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:                 log,
		Cfg:                 cfg,
		HistoryDB:           historyDB,
		CacheDB:             cacheDB,
		OptimizationHandler: optimizationHandler,
		HistoricalHandler:   historicalHandler,
		ChartsHandler:       chartsHandler,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("HTTP server failed")
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
