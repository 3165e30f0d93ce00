// Package devserver is an in-memory implementation of the chat HTTP API and
// socket, for local development and end-to-end tests of the client.
package devserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/msniranjan18/chit-chat-client/config"
	"github.com/msniranjan18/chit-chat-client/pkg/logging"
	"github.com/msniranjan18/chit-chat-client/pkg/metrics"

	_ "github.com/msniranjan18/chit-chat-client/docs"
)

type Server struct {
	cfg    *config.Config
	store  *Store
	hub    *Hub
	tokens *TokenIssuer
	router chi.Router
	logger zerolog.Logger
}

func New(cfg *config.Config, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  NewStore(),
		hub:    NewHub(logging.Component(logger, "hub")),
		tokens: NewTokenIssuer(cfg.DevServer.JWTSecret, cfg.DevServer.JWTExpiration),
		logger: logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(Logger(s.logger))
	r.Use(chimw.Recoverer)

	authHandler := NewAuthHandler(s.store, s.tokens, !s.cfg.IsDevelopment(), s.logger)
	messageHandler := NewMessageHandler(s.store, s.hub, s.logger)

	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Get("/socket", HandleWS(s.hub, s.tokens, s.cfg.WebSocket, s.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", authHandler.Signup)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(s.tokens, s.store))

			r.Get("/auth/check", authHandler.Check)
			r.Put("/auth/update-profile", authHandler.UpdateProfile)

			r.Get("/messages/users", messageHandler.Users)
			r.Get("/messages/{id}", messageHandler.History)
			r.Post("/messages/send/{id}", messageHandler.Send)
		})
	})

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the socket hub until ctx is done.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx)
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.Start(ctx)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.DevServer.ReadTimeout,
		WriteTimeout: s.cfg.DevServer.WriteTimeout,
		IdleTimeout:  s.cfg.DevServer.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("ChitChat dev server starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info().Msg("Shutting down dev server")
	return server.Shutdown(shutdownCtx)
}

// Logger logs one line per request.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("request_id", chimw.GetReqID(r.Context())).
					Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Metrics counts requests by route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.DevServerRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}
