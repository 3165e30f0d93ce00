package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/msniranjan18/chit-chat-client/config"
	"github.com/msniranjan18/chit-chat-client/pkg/devserver"
	"github.com/msniranjan18/chit-chat-client/pkg/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg := config.Load()
	logger := logging.New(cfg.Env, cfg.LogLevel)

	logger.Info().
		Str("port", cfg.DevServer.Port).
		Str("env", cfg.Env).
		Msg("Starting ChitChat dev server")

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			metricsServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			logger.Info().Str("addr", cfg.Metrics.Addr).Msg("Serving metrics")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	srv := devserver.New(cfg, logger)
	if err := srv.ListenAndServe(ctx, ":"+cfg.DevServer.Port); err != nil {
		logger.Fatal().Err(err).Msg("Server failed to start")
	}
}
