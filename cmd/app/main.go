// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"content-enrichment/internal/config"
	"content-enrichment/internal/infra/adapters/lambda"
	"content-enrichment/internal/infra/api"
	pg "content-enrichment/internal/infra/db/postgres"
	"content-enrichment/internal/infra/logging"
	"content-enrichment/internal/infra/metrics"
	red "content-enrichment/internal/infra/redis"
	"content-enrichment/internal/infra/sched"
	"content-enrichment/internal/infra/security"
	"content-enrichment/internal/infra/worker"
	"content-enrichment/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logging, relaxed checks)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, *devMode)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	sessionCache := red.NewSessionCache(redisClient, cfg.Redis.TTL)
	invalidator := red.NewChildrenInvalidator(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Encryption ----
	encKey := cfg.Security.EncryptionKey
	if len(encKey) != 32 {
		logger.Warn().Msg("security.encryption_key not set or not 32 bytes; falling back to dev key (INSECURE)")
		encKey = "0123456789abcdef0123456789abcdef"
	}
	encSvc, err := security.NewEncryptionService(encKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}

	// ---- Repositories ----
	contentRepo := pg.NewContentRepo(pool)
	groupRepo := pg.NewGroupRepo(pool)
	accountRepo := pg.NewAccountRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Lambda executor ----
	executor := lambda.NewClient(cfg.Lambda.Endpoint, cfg.Lambda.APIKey, cfg.Lambda.Timeout)

	// ---- Use cases ----
	poller := usecase.NewPoller(executor, logger)
	prompts, err := usecase.NewPromptBuilder(cfg.Enrich.TokenEncoding, cfg.Enrich.PromptBudget)
	if err != nil {
		logger.Fatal().Err(err).Msg("prompt builder")
	}
	sessionUC := usecase.NewSessionUseCase(contentRepo, txManager, sessionCache)
	enrichUC := usecase.NewEnrichmentUseCase(executor, poller, contentRepo, sessionUC, prompts, invalidator, encSvc, logger)

	// ---- Metrics ----
	metrics.MustRegister()

	// ---- HTTP API ----
	guard := api.NewAuthGuard(cfg.API.JWTSecret)
	srv := api.NewServer(enrichUC, sessionUC, contentRepo, groupRepo, accountRepo, guard, rateLimiter, logger)
	handler := api.Chain(srv.Router(),
		api.Recover(logger),
		api.TraceID(logger),
		api.RequestLog(logger),
		api.Timeout(15*time.Minute), // enrich requests block on remote jobs
	)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.API.Port), Handler: handler}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Background sync ----
	var tellerCerts *security.TellerCertSource
	if cfg.Teller.CertFile != "" {
		tellerCerts = security.NewTellerCertSource(cfg.Teller.CertFile, cfg.Teller.KeyFile)
	}
	pool2 := worker.NewPool(cfg.Enrich.Workers, logger)
	pool2.Start(ctx)
	syncWorker := sched.NewSyncWorker(cfg.Enrich.DailySyncHour, accountRepo, enrichUC, locker, pool2, tellerCerts, logger)
	go func() { _ = syncWorker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	pool2.Stop()
}
