package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"log-archiver/internal/usecase"
)

// Server is the operator surface: job status by date, a synchronous
// manual trigger for backfill, and on-demand retention sweeps.
type Server struct {
	daily     usecase.DailyJobUseCase
	processor usecase.SlotProcessorUseCase
	retention usecase.RetentionUseCase
	apiKey    string
	log       *zerolog.Logger
}

func NewServer(
	daily usecase.DailyJobUseCase,
	processor usecase.SlotProcessorUseCase,
	retention usecase.RetentionUseCase,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{daily: daily, processor: processor, retention: retention, apiKey: apiKey, log: &l}
}

// Router wires the routes. Reads are open; anything that mutates or
// triggers work sits behind the bearer key.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Get("/{date}", s.getJob)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/{date}", s.createJob)
			r.Post("/{date}/slots/{hourRange}/process", s.processSlot)
		})
	})
	r.With(s.authMiddleware).Post("/api/v1/retention/sweep", s.sweep)

	return r
}

// authMiddleware provides simple Bearer token authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("web API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}
		if tokenParts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
