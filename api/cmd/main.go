package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kartalink/circle-service/internal/audit"
	"github.com/kartalink/circle-service/internal/config"
	"github.com/kartalink/circle-service/internal/domain"
	"github.com/kartalink/circle-service/internal/infrastructure/memory"
	"github.com/kartalink/circle-service/internal/infrastructure/postgres"
	"github.com/kartalink/circle-service/internal/infrastructure/redis"
	"github.com/kartalink/circle-service/internal/infrastructure/storage"
	"github.com/kartalink/circle-service/internal/pkg/logger"
	"github.com/kartalink/circle-service/internal/security"
	"github.com/kartalink/circle-service/internal/service"
	"github.com/kartalink/circle-service/internal/transport/rest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}

	logger.Init()
	log := logger.Logger.With().
		Str("service", "circle-service").
		Str("env", cfg.AppEnv).
		Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Postgres ----
	dbPool, err := pgxpool.New(rootCtx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres pool create failed")
	}
	defer dbPool.Close()

	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		defer cancel()

		if err := dbPool.Ping(pingCtx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		log.Info().Msg("postgres connected")
	}

	repo := postgres.New(dbPool)

	// ---- Redis ----
	cache := redis.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.CacheCountTTL)
	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
		defer cancel()

		// Best-effort: counts and rate limits degrade, admission does not.
		if err := cache.Client.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed (continuing)")
		} else {
			log.Info().Msg("redis connected")
		}
	}

	// ---- Proof storage ----
	var proofs domain.ProofStore
	if cfg.S3Bucket != "" {
		s3Store, err := storage.NewS3ProofStore(cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("s3 proof store init failed")
		}
		{
			ensureCtx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
			defer cancel()
			if err := s3Store.EnsureBucket(ensureCtx); err != nil {
				log.Fatal().Err(err).Msg("s3 bucket ensure failed")
			}
		}
		proofs = s3Store
		log.Info().Str("bucket", cfg.S3Bucket).Msg("s3 proof store ready")
	} else {
		// Local development only, proofs do not survive a restart.
		proofs = memory.NewProofStore()
		log.Warn().Msg("S3_BUCKET not set, storing proofs in memory")
	}

	// ---- Application services ----
	aud := audit.New(log)

	circleSvc := service.NewCircleService(repo, aud)
	membershipSvc := service.NewMembershipService(repo, repo, aud)
	invitationSvc := service.NewInvitationService(repo, repo, repo, repo, aud)
	joinRequestSvc := service.NewJoinRequestService(repo, repo, repo, repo, aud)
	eventSvc := service.NewEventService(repo, repo, cache, proofs, aud)
	broadcastSvc := service.NewBroadcastService(repo, aud)

	h := rest.NewHandler(circleSvc, membershipSvc, invitationSvc, joinRequestSvc, eventSvc, broadcastSvc)

	// ---- JWT verifier ----
	verifier := security.NewHS256Verifier(cfg.JWTSecret)

	// ---- Router ----
	httpHandler := rest.NewRouter(rest.RouterDeps{
		Cache:            cache,
		Handler:          h,
		Verifier:         verifier,
		JWTIssuer:        cfg.JWTIssuer,
		RateLimitEnabled: cfg.RLEnabled,
		RateLimit:        cfg.RLLimit,
		RateWindow:       cfg.RLWindow,
	})

	// ---- Outbox worker (outbound broadcast notifications) ----
	if cfg.OutboxEnabled {
		repo.StartOutboxWorker(rootCtx, cfg.RabbitURL, cfg.RabbitExchange)
		log.Info().Str("exchange", cfg.RabbitExchange).Msg("outbox worker started")
	}

	// ---- HTTP server ----
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server crashed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
