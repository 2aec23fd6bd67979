package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-media/pkg/simplemedia"
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

	rt, err := cfg.BuildService(ctx, logger, simplemedia.WithMetrics(metrics.New(prometheus.DefaultRegisterer)))
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	consumer, err := notification.Dial(notification.ConsumerConfig{
		URL:         cfg.AMQP.URL,
		Queue:       cfg.AMQP.Queue,
		ConsumerTag: "simple-media-worker",
		Prefetch:    cfg.AMQP.Prefetch,
	}, notification.NewHandler(rt.Service, logger), logger)
	if err != nil {
		slog.Error("Failed to connect to broker", "err", err)
		os.Exit(1)
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil {
		slog.Error("Consumer stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("Worker exiting")
}
