// TASQI - Conversational Task Assistant Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/bryancris/tasqi-sub000/internal/api"
	"github.com/bryancris/tasqi-sub000/internal/assistant"
	"github.com/bryancris/tasqi-sub000/internal/backend"
	"github.com/bryancris/tasqi-sub000/internal/config"
	"github.com/bryancris/tasqi-sub000/internal/identity"
	"github.com/bryancris/tasqi-sub000/internal/middleware"
	"github.com/bryancris/tasqi-sub000/internal/notify"
	"github.com/bryancris/tasqi-sub000/internal/refresh"
	"github.com/bryancris/tasqi-sub000/internal/sched"
	"github.com/bryancris/tasqi-sub000/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// The backend probe is advisory. An unreachable backend degrades the
	// pipeline to local timer fallbacks and apologies, it never blocks
	// startup.
	client := backend.NewClient(backend.ClientConfig{
		BaseURL:        cfg.BackendURL,
		RequestTimeout: cfg.BackendTimeout,
	}, logger)
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := client.Probe(probeCtx); err != nil {
		slog.Warn("Assistant backend unreachable, starting degraded", "error", err)
	} else {
		slog.Info("Assistant backend reachable", "url", cfg.BackendURL)
	}
	probeCancel()

	center := notify.NewCenter(repo, logger)
	defer center.Close()

	cache := refresh.NewCache()
	coordinator := refresh.NewCoordinator(cache, logger)
	defer coordinator.Stop()

	scheduler := sched.New(center, notify.Chime{Center: center}, coordinator, logger)
	defer scheduler.Stop()

	sessions := assistant.NewManager(client, scheduler, coordinator, center, repo, logger)

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	apiHandler := api.NewHandler(sessions, scheduler, cache, repo, limiter, cfg.MaxRequestBodySize, logger)
	wsHandler := notify.NewWebSocketHandler(center, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	apiHandler.RegisterRoutes(r)

	// WebSocket endpoint for live notifications.
	r.Get("/ws/notifications", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout, WebSocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the due-reminder sweeper.
	notify.StartReminderSweeper(ctx, repo, center, cfg.SweepInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
