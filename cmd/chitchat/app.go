package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/msniranjan18/chit-chat-client/config"
	"github.com/msniranjan18/chit-chat-client/pkg/api"
	"github.com/msniranjan18/chit-chat-client/pkg/kv"
	"github.com/msniranjan18/chit-chat-client/pkg/logging"
	"github.com/msniranjan18/chit-chat-client/pkg/notify"
	"github.com/msniranjan18/chit-chat-client/pkg/push"
	"github.com/msniranjan18/chit-chat-client/pkg/state"
)

// app wires the stores for one interactive run.
type app struct {
	logger  zerolog.Logger
	store   kv.Store
	session *state.Session
	conv    *state.Conversation
	pref    *state.Preference
	metrics *http.Server
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, notifier notify.Notifier) (*app, error) {
	client, err := api.New(cfg.API.URL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(logging.Component(logger, "api")),
	)
	if err != nil {
		return nil, err
	}

	store, err := kv.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	pref, err := state.NewPreference(ctx, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	var dialer state.Dialer
	if cfg.API.SocketURL != "" {
		dialer = &push.Dialer{
			URL:              cfg.API.SocketURL,
			Jar:              client.Jar(),
			Logger:           logging.Component(logger, "push"),
			HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
			WriteWait:        cfg.WebSocket.WriteWait,
			PongWait:         cfg.WebSocket.PongWait,
			PingPeriod:       cfg.WebSocket.PingPeriod,
			MaxMessageSize:   cfg.WebSocket.MaxMessageSize,
		}
	}

	session := state.NewSession(client, dialer, notifier, logger)
	a := &app{
		logger:  logger,
		store:   store,
		session: session,
		conv:    state.NewConversation(client, session, notifier, logger),
		pref:    pref,
	}

	if cfg.Metrics.Addr != "" {
		a.serveMetrics(cfg.Metrics.Addr)
	}
	return a, nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
}

func (a *app) Close() {
	a.conv.Close()
	a.session.Close()
	a.pref.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Error closing preference store")
	}
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
}
