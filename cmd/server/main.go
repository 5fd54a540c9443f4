// Package main is the entrypoint for the error monitoring API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/errormonitoring/backend/internal/alerting"
	"github.com/errormonitoring/backend/internal/api"
	"github.com/errormonitoring/backend/internal/api/handler"
	mw "github.com/errormonitoring/backend/internal/api/middleware"
	"github.com/errormonitoring/backend/internal/api/response"
	"github.com/errormonitoring/backend/internal/audit"
	"github.com/errormonitoring/backend/internal/cache"
	"github.com/errormonitoring/backend/internal/config"
	"github.com/errormonitoring/backend/internal/ingest"
	"github.com/errormonitoring/backend/internal/notify"
	"github.com/errormonitoring/backend/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "notify_mode", cfg.Notify.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create the notification channel
	mailer, err := notify.NewMailer(*cfg)
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}

	// 6. Create store and services
	pgStore := store.NewPostgresStore(pool)
	engine := alerting.NewEngine(pgStore, mailer, cfg.Notify)
	ingestSvc := ingest.NewService(pgStore, engine)
	auditor := audit.NewRecorder(pgStore)

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore, cfg.Auth.JWTSecret, cfg.Auth.IngestKeyRequired)
	rateLimit := mw.NewRateLimit(redisCache, cfg.Server.RequestsPerMin)

	errorHandler := handler.NewErrorHandler(ingestSvc, pgStore, auditor)
	alertHandler := handler.NewAlertHandler(engine, pgStore, auditor)
	appHandler := handler.NewApplicationHandler(pgStore, auditor)
	auditHandler := handler.NewAuditHandler(pgStore)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),

		IngestError:  errorHandler.Ingest,
		ListErrors:   errorHandler.List,
		ResolveError: errorHandler.Resolve,

		ListAlerts:           alertHandler.List,
		ListUnresolvedAlerts: alertHandler.ListUnresolved,
		CreateAlert:          alertHandler.Create,
		ResolveAlert:         alertHandler.Resolve,
		DeleteAlert:          alertHandler.Delete,

		ListApplications:  appHandler.List,
		CreateApplication: appHandler.Create,
		UpdateApplication: appHandler.Update,
		PauseApplication:  appHandler.Pause,
		ResumeApplication: appHandler.Resume,
		DeleteApplication: appHandler.Delete,

		ListAudit: auditHandler.List,
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
