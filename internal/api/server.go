package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/case-register/internal/config"
	"github.com/snarg/case-register/internal/metrics"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// NewRouter builds the HTTP routes and middleware chain.
func NewRouter(cfg *config.Config, svc Transcriber, log zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer)
	r.Use(CORSWithOrigins(cfg.AllowedOrigins()))
	r.Use(metrics.InstrumentHandler)

	r.Get("/health", Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", Health)
		NewTranscribeHandler(svc, log).Routes(r)
	})

	return r
}

func NewServer(cfg *config.Config, svc Transcriber, log zerolog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      NewRouter(cfg, svc, log),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
