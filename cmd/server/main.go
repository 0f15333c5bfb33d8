package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"comandapos/internal/config"
	"comandapos/internal/infra"
	"comandapos/internal/repository"
	"comandapos/internal/router"
	"comandapos/internal/service"
	"comandapos/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if cfg.AutoMigrate {
		if err := infra.RunMigrations(db); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	// Legacy databases without the sessions table run read-only on the
	// movement log.
	ledger := repository.NewLedgerStore(db)
	mode := cfg.SessionResolution
	if !infra.HasSessionTable(db) {
		if mode == config.ResolutionStatus {
			log.Fatal().Msg("SESSION_RESOLUTION=status but the cash_sessions table does not exist")
		}
		ledger = ledger.WithoutSessions()
		log.Warn().Msg("cash_sessions table missing, resolving sessions from the movement log")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is optional: without it the catalog is uncached and closing
	// reports are not generated.
	var cache redis.Cmdable
	var reports service.ReportEnqueuer
	mailer := infra.NewMailer(cfg)
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, running without cache and report queue")
	} else {
		defer rdb.Close()
		cache = rdb
		dispatcher := worker.NewDispatcher(rdb)
		reports = dispatcher

		store, err := infra.NewReportStore(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure report storage")
		}
		pool := worker.NewPool(rdb, map[string]worker.Handler{
			worker.JobClosingReport: worker.NewReportWorker(store, cfg.BusinessName, cfg.ReportEmailTo, dispatcher),
			worker.JobEmail:         worker.NewEmailWorker(mailer, store),
		})
		pool.Start(ctx, cfg.WorkerPoolSize)
		worker.StartRetryCron(ctx, worker.RetryCronConfig{
			RDB:    rdb,
			Queues: []string{worker.QueueReports, worker.QueueEmail},
			Ready:  mailer.Available,
		})
	}

	resolver := service.NewSessionResolver(ledger, mode)
	recon := service.NewReconciliationEngine(ledger)
	catalog := service.NewCatalogService(repository.NewProductRepository(db), cache, cfg.CatalogCacheTTL)
	locks := service.NewKeyedMutex()

	r := router.New(cfg, router.Deps{
		DB:      db,
		Redis:   cache,
		SMTP:    mailer,
		Caja:    service.NewCajaService(ledger, resolver, recon, reports, locks),
		Orders:  service.NewOrderService(ledger, catalog, resolver, locks),
		Catalog: catalog,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("resolution", mode).Msgf("comandapos backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}

// setupLogger: pretty console output in development, JSON in production.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
