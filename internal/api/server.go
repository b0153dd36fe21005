// SPDX-License-Identifier: MIT

// Package api serves the device-local HTTP surface: probes, metrics, the
// playback status endpoint, and the rate-limited pairing endpoint.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/totemview/totem/internal/health"
	"github.com/totemview/totem/internal/log"
	"github.com/totemview/totem/internal/player"
	"github.com/totemview/totem/internal/syncchan"
)

// pairing is deliberately tight: one device pairs once, everything else is
// someone probing.
const (
	pairRateLimit  = 5
	pairRateWindow = time.Minute
)

// Engine is the read side of the playback engine.
type Engine interface {
	Status() player.Status
}

// Pairer binds the device to a screen identity.
type Pairer interface {
	Pair(ctx context.Context, screenID, name string) (string, error)
}

// Directory lists registered screens for tooling.
type Directory interface {
	ListScreens(ctx context.Context) ([]syncchan.ScreenInfo, error)
}

// Config holds the local API settings.
type Config struct {
	ListenAddr string
	Version    string
}

// Server is the device-local HTTP server.
type Server struct {
	cfg         Config
	engine      Engine
	pairer      Pairer
	directory   Directory
	healthMgr   *health.Manager
	screenID    func() string
	pairingCode func() string
	logger      zerolog.Logger
	started     time.Time
}

// New assembles the server. directory may be nil when the device is not
// paired to a sync store yet; pairingCode returns "" once paired.
func New(cfg Config, engine Engine, pairer Pairer, directory Directory, healthMgr *health.Manager, screenID, pairingCode func() string) *Server {
	return &Server{
		cfg:         cfg,
		engine:      engine,
		pairer:      pairer,
		directory:   directory,
		healthMgr:   healthMgr,
		screenID:    screenID,
		pairingCode: pairingCode,
		logger:      log.WithComponent("api"),
		started:     time.Now(),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverer)
	r.Use(requestID)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.healthMgr.ServeHealth)
	r.Get("/readyz", s.healthMgr.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/screens", s.handleScreens)
		r.With(httprate.Limit(
			pairRateLimit,
			pairRateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(s.rateLimited),
		)).Post("/pair", s.handlePair)
	})
	return r
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info().
		Str("event", "api.listening").
		Str("addr", s.cfg.ListenAddr).
		Msg("local API listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("recovered handler panic")
				writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(log.ContextWithRequestID(r.Context(), id)))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", log.RequestIDFromContext(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}

func (s *Server) rateLimited(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many pairing attempts")
}
