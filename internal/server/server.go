// Package server exposes the core over HTTP: single-symbol runs and
// portfolio runs synchronously, parameter sweeps asynchronously with
// progress streamed over a websocket, plus a nightly scheduled sweep
// (§11 domain stack: go-chi, go-chi/cors, robfig/cron, nhooyr.io/websocket).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/dca-simulator/internal/archive"
	"github.com/aristath/dca-simulator/internal/batch"
	"github.com/aristath/dca-simulator/internal/config"
	"github.com/aristath/dca-simulator/internal/priceprovider"
	"github.com/aristath/dca-simulator/internal/scheduler"
)

// Config configures one Server.
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Provider  priceprovider.Provider
	Cache     *batch.ResultCache // optional, nil disables batch memoization
	Archiver  *archive.Archiver  // optional, nil disables result archival
}

// Server is the HTTP surface over the simulation core.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	cfg       *config.Config
	provider  priceprovider.Provider
	cache     *batch.ResultCache
	archiver  *archive.Archiver
	scheduler *scheduler.Scheduler
	jobs      *batchJobRegistry
}

// New builds a Server, wiring routes and middleware but not yet listening.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		provider:  cfg.Provider,
		cache:     cfg.Cache,
		archiver:  cfg.Archiver,
		scheduler: scheduler.New(cfg.Log),
		jobs:      newBatchJobRegistry(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket streams hold the connection open
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(5 * time.Minute))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if !s.cfg.DevMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/run", s.handleRun)
		r.Post("/portfolio", s.handlePortfolio)
		r.Post("/batch", s.handleBatchStart)
		r.Get("/batch/{batchId}", s.handleBatchStatus)
		r.Delete("/batch/{batchId}", s.handleBatchCancel)
	})

	s.router.Get("/ws/batch/{batchId}", s.handleBatchStream)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ScheduleNightlySweep registers a recurring batch sweep job at the given
// cron schedule (e.g. "0 2 * * *" for 2am daily).
func (s *Server) ScheduleNightlySweep(schedule string, cfgPath string) error {
	return s.scheduler.AddJob(schedule, newNightlySweepJob(s, cfgPath))
}

// Start starts the scheduler and blocks serving HTTP until the server is
// shut down or fails.
func (s *Server) Start() error {
	s.scheduler.Start()
	s.log.Info().Int("port", s.cfg.Port).Msg("starting http server")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the scheduler and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.scheduler.Stop()
	s.log.Info().Msg("shutting down http server")
	return s.server.Shutdown(ctx)
}
