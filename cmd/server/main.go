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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/api"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
	"github.com/tendant/simple-media/pkg/simplemedia/metrics"
	"github.com/tendant/simple-media/pkg/simplemedia/notification"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.New(prometheus.DefaultRegisterer)
	rt, err := cfg.BuildService(ctx, logger, simplemedia.WithMetrics(recorder))
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	if cfg.JWTSecret == "" {
		slog.Warn("JWT_SECRET is empty, tokens are signed with an empty key")
	}
	if cfg.WebhookToken == "" {
		slog.Warn("WEBHOOK_TOKEN is empty, the storage webhook accepts unauthenticated calls")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)
	r.Handle("/metrics", promhttp.Handler())

	api.Mount(r, api.RouterConfig{
		Service:       rt.Service,
		JWTAuth:       api.NewJWTAuth(cfg.JWTSecret),
		Notifications: notification.NewHandler(rt.Service, logger),
		WebhookToken:  cfg.WebhookToken,
		Metrics:       recorder,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Media server starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"database", cfg.DatabaseType,
			"storage", cfg.StorageType)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
	}
}
