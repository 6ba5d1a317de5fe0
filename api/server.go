package api

import (
	"context"
	"net/http"
	"time"

	"interestbatch/models"
	"interestbatch/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Engine is the set of engine operations exposed over HTTP
type Engine interface {
	TriggerJob(ctx context.Context, req service.TriggerRequest) (*models.Execution, error)
	GetExecution(ctx context.Context, id uuid.UUID) (*models.Execution, error)
	ListExecutions(ctx context.Context, filter models.ExecutionFilter, page models.Page) (*models.ExecutionList, error)
	CancelExecution(ctx context.Context, id uuid.UUID) (*models.Execution, error)
	GetAccountResults(ctx context.Context, filter models.AccountResultFilter, page models.Page) (*models.AccountResultList, error)
	GetSummary(ctx context.Context) (*models.Summary, error)
	GetConfigs(ctx context.Context) ([]*models.JobConfig, error)
	GetConfig(ctx context.Context, jobType models.JobType) (*models.JobConfig, error)
	CreateConfig(ctx context.Context, cfg *models.JobConfig) (*models.JobConfig, error)
	UpdateConfig(ctx context.Context, jobType models.JobType, patch *models.JobConfigPatch) (*models.JobConfig, error)
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	engine  Engine
	metrics http.Handler
}

// NewServer creates the HTTP server; metrics may be nil
func NewServer(addr string, engine Engine, metrics http.Handler) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		engine:  engine,
		metrics: metrics,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(loggingMiddleware)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs/{jobType}/trigger", s.handleTriggerJob)

		r.Route("/executions", func(r chi.Router) {
			r.Get("/", s.handleListExecutions)
			r.Get("/{id}", s.handleGetExecution)
			r.Post("/{id}/cancel", s.handleCancelExecution)
			r.Get("/{id}/results", s.handleGetAccountResults)
		})

		r.Get("/summary", s.handleGetSummary)

		r.Route("/configs", func(r chi.Router) {
			r.Get("/", s.handleGetConfigs)
			r.Post("/", s.handleCreateConfig)
			r.Get("/{jobType}", s.handleGetConfig)
			r.Patch("/{jobType}", s.handleUpdateConfig)
		})
	})
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	log.WithField("addr", s.server.Addr).Info("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.WithFields(log.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"bytes":     ww.BytesWritten(),
			"duration":  time.Since(start),
			"requestID": middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}
