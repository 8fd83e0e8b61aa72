// Package httpapi is the illustrative HTTP driver surface (§6.5): a thin
// chi.Mux exposing ingest/status/search endpoints over the Ingestion
// Service and Search Service, grounded on the teacher's
// internal/server/http.go for middleware shape and graceful shutdown, but
// serving plain JSON handlers directly instead of a grpc-gateway, since
// this module has no generated gRPC service to front.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/Theubaa/universal-vectorizer/internal/ingestsvc"
	"github.com/Theubaa/universal-vectorizer/internal/job"
	"github.com/Theubaa/universal-vectorizer/internal/search"
)

// Server wraps an http.Server over the ingestion and search surfaces.
type Server struct {
	server *http.Server
	router *chi.Mux
	logger *slog.Logger

	jobs    *job.Manager
	ingest  *ingestsvc.Service
	search  *search.Service
}

// Config holds the tunables Server needs at construction.
type Config struct {
	Port           int
	Logger         *slog.Logger
	AllowedOrigins []string
}

// New builds a Server and wires its routes.
func New(cfg Config, jobs *job.Manager, ingest *ingestsvc.Service, searchSvc *search.Service) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	s := &Server{
		router: router,
		logger: logger,
		jobs:   jobs,
		ingest: ingest,
		search: searchSvc,
	}

	router.Get("/healthz", healthHandler)
	router.Post("/v1/ingest/file", s.handleIngestFile)
	router.Post("/v1/ingest/url", s.handleIngestURL)
	router.Get("/v1/jobs", s.handleListJobs)
	router.Get("/v1/jobs/{jobID}", s.handleGetJob)
	router.Get("/v1/jobs/{jobID}/subscribe", s.handleSubscribeJob)
	router.Post("/v1/search", s.handleSearch)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start serves until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("httpapi: server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	return nil
}

type ingestFileRequest struct {
	Path     string            `json:"path"`
	Metadata map[string]string `json:"metadata"`
}

type ingestURLRequest struct {
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata"`
}

type jobIDResponse struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleIngestFile(w http.ResponseWriter, r *http.Request) {
	var req ingestFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	// Unsupported suffixes are no longer rejected here: the job is always
	// created first and an unresolvable extractor surfaces as a normal
	// failed job transition (inspect via GET /v1/jobs/{jobID}), per §4.9.
	jobID, err := s.ingest.IngestFile(r.Context(), req.Path, req.Metadata)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobIDResponse{JobID: jobID})
}

func (s *Server) handleIngestURL(w http.ResponseWriter, r *http.Request) {
	var req ingestURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	jobID, err := s.ingest.IngestURL(r.Context(), req.URL, req.Metadata)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobIDResponse{JobID: jobID})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.List())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	status, ok := s.jobs.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("job %q not found", jobID))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleSubscribeJob upgrades to a WebSocket (via gobwas/ws, a frameless
// low-level library matching this module's hand-rolled-client style
// elsewhere) and streams job.Status snapshots as they arrive until the job
// reaches a terminal state or the client disconnects.
func (s *Server) handleSubscribeJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if _, ok := s.jobs.Get(jobID); !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("job %q not found", jobID))
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "job_id", jobID, "error", err)
		return
	}
	defer conn.Close()

	updates := s.jobs.Subscribe(jobID)
	defer s.jobs.Unsubscribe(jobID, updates)

	for status := range updates {
		payload, err := json.Marshal(status)
		if err != nil {
			s.logger.Error("marshal job status", "job_id", jobID, "error", err)
			return
		}
		if err := wsutil.WriteServerMessage(conn, ws.OpText, payload); err != nil {
			return
		}
		if status.State == job.StateCompleted || status.State == job.StateFailed {
			return
		}
	}
}

type searchRequest struct {
	Query   string            `json:"query"`
	TopK    int               `json:"top_k"`
	Offset  int               `json:"offset"`
	Filters map[string]string `json:"filters"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}
	matches, err := s.search.Search(r.Context(), req.Query, req.TopK, req.Offset, req.Filters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := len(allowedOrigins) == 0
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}
			if allowed {
				if len(allowedOrigins) == 0 {
					origin = "*"
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
