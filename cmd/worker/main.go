package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	zlog "github.com/rs/zerolog/log"

	"github.com/unclebandit/darb-backend/internal/app"
	"github.com/unclebandit/darb-backend/internal/config"
	"github.com/unclebandit/darb-backend/internal/logging"
)

// The worker drains the upload queue when the server publishes to RabbitMQ.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.QueueBackend != config.QueueAMQP {
		zlog.Fatal().Str("queue", cfg.QueueBackend).Msg("the upload worker needs QUEUE_BACKEND=amqp")
	}
	logger := logging.Setup(cfg.ServiceName+"-worker", cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	if err := a.StartUploads(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register consumer")
	}

	logger.Info().Str("queue", cfg.UploadQueue).Msg("Worker running, waiting for messages...")
	<-ctx.Done()
	logger.Info().Msg("worker stopping")
}
