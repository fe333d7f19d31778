// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"

	"github.com/unclebandit/darb-backend/internal/app"
	"github.com/unclebandit/darb-backend/internal/config"
	"github.com/unclebandit/darb-backend/internal/controller"
	"github.com/unclebandit/darb-backend/internal/handler"
	"github.com/unclebandit/darb-backend/internal/logging"
	"github.com/unclebandit/darb-backend/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.Setup(cfg.ServiceName, cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	// With the in-memory queue uploads are handled in process; an AMQP queue
	// is drained by cmd/worker.
	if cfg.QueueBackend == config.QueueMemory {
		if err := a.StartUploads(); err != nil {
			logger.Fatal().Err(err).Msg("failed to subscribe upload worker")
		}
	}

	sweeper := scheduler.New(cfg.QuotaSweepCron, a.Evictor, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.QuotaSweepCron).Msg("invalid quota sweep schedule")
	}
	defer sweeper.Stop()
	sweeper.Sweep()

	campaignController := &controller.CampaignController{
		CampaignService: a.Campaigns,
	}
	storageHandler := handler.NewStorageHandler(a.Monitor, a.Evictor, a.Cache)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware(logger))

	campaignController.Routes(r)
	storageHandler.Routes(r)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir))))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("🚀 Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
