// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/happening-registration/internal/config"
	"github.com/Shivanand-hulikatti/happening-registration/internal/database"
	"github.com/Shivanand-hulikatti/happening-registration/internal/handler"
	"github.com/Shivanand-hulikatti/happening-registration/internal/logger"
	"github.com/Shivanand-hulikatti/happening-registration/internal/notify"
	"github.com/Shivanand-hulikatti/happening-registration/internal/ratelimit"
	"github.com/Shivanand-hulikatti/happening-registration/internal/repository"
	"github.com/Shivanand-hulikatti/happening-registration/internal/repository/memstore"
	"github.com/Shivanand-hulikatti/happening-registration/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	scope, err := service.ParsePromotionScope(cfg.PromotionScope)
	if err != nil {
		return err
	}
	if cfg.AdminKey == "" {
		log.Warn().Msg("ADMIN_KEY not set, admin routes are disabled")
	}

	// ── 1. Storage ────────────────────────────────────────────────────────
	var (
		store      repository.Store
		happenings repository.HappeningStore
	)
	switch cfg.Store {
	case config.StoreMemory:
		mem := memstore.New()
		store, happenings = mem, mem
		log.Warn().Msg("using in-memory store, registrations are lost on restart")
	default:
		pool, err := database.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		log.Info().Msg("connected to PostgreSQL")

		if err := repository.MigrateUp(ctx, pool, log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		store = repository.NewRegistrationRepository(pool)
		happenings = repository.NewHappeningRepository(pool)
	}

	// ── 2. Notifications ──────────────────────────────────────────────────
	var notifier service.Notifier = notify.NewLogNotifier(log)
	if cfg.RabbitMQURL != "" {
		pub, err := notify.NewPublisher(cfg.RabbitMQURL, cfg.NotifyQueue, log)
		if err != nil {
			log.Warn().Err(err).Msg("rabbitmq unavailable, notifications will only be logged")
		} else {
			defer pub.Close()
			notifier = pub
		}
	}

	// ── 3. Rate limiting ──────────────────────────────────────────────────
	var scripter redis.Scripter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := pingRedis(ctx, rdb); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, rate limiting disabled")
		} else {
			scripter = rdb
		}
	}
	limiter := ratelimit.New(scripter, cfg.RateLimit, log)

	// ── 4. Wire up layers ─────────────────────────────────────────────────
	admission := service.NewAdmissionService(store, notifier, log, service.AdmissionConfig{
		VerifyRegistrations: cfg.VerifyRegistrations,
		SendConfirmations:   cfg.SendEmailRegistration,
		PromotionScope:      scope,
	})
	happeningSvc := service.NewHappeningService(happenings, notifier, log, service.HappeningConfig{
		Dev:                    cfg.Dev,
		SendRegistrationsLinks: cfg.SendEmailHappening,
	})
	h := handler.NewRegistrationHandler(admission, happeningSvc, log)

	router := handler.NewRouter(h, handler.RouterConfig{
		AdminKey:      cfg.AdminKey,
		SubmitLimiter: limiter.Middleware,
		Log:           log,
	})

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serve(ctx, srv, log)
}

func pingRedis(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rdb.Ping(ctx).Err()
}

func serve(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
