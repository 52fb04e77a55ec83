package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/retailcore/noos-go/internal/adapters/metrics"
	"github.com/retailcore/noos-go/internal/application/mediator"
	"github.com/retailcore/noos-go/internal/engine"
)

// Server exposes the task engine and the read-side queries over HTTP/JSON.
// All domain work goes through the mediator or the engine; handlers only
// translate between the wire shapes and application types.
type Server struct {
	engine   *engine.Engine
	mediator mediator.Mediator
	logger   zerolog.Logger
	router   *chi.Mux
	httpSrv  *http.Server
}

// NewServer creates the HTTP server and registers all routes
func NewServer(eng *engine.Engine, m mediator.Mediator, logger zerolog.Logger) *Server {
	s := &Server{
		engine:   eng,
		mediator: m,
		logger:   logger,
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the configured router, used directly by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called or the listener fails
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")

	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestLogger)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", metrics.HTTPHandler())

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/file/upload/{kind}/async", s.handleUpload)
		r.Post("/file/download/{kind}/async", s.handleDownload)
		r.Get("/file/status", s.handleFileStatus)

		r.Get("/tasks/{id}", s.handleGetTask)
		r.Post("/tasks/{id}/cancel", s.handleCancelTask)
		r.Get("/tasks/{id}/result", s.handleTaskResult)

		r.Get("/algo/current", s.handleActiveParameters)
		r.Get("/algo/defaults", s.handleDefaultParameters)
		r.Post("/algo/update", s.handleUpdateActiveParameters)
		r.Post("/algo/create", s.handleCreateParameterSet)
		r.Get("/algo/set/{name}", s.handleGetParameterSet)
		r.Put("/algo/set/{name}", s.handleUpdateParameterSet)
		r.Post("/algo/set/{name}/activate", s.handleActivateParameterSet)
		r.Get("/algo/sets/recent", s.handleRecentParameterSets)

		r.Post("/run/noos/async", s.handleRunNoos)

		r.Get("/report/report1", s.handleNoosReport)
		r.Get("/report/report2", s.handleHealthReport)
		r.Get("/updates", s.handleDashboard)

		r.Delete("/data/clear-all", s.handleClearAll)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger emits one structured line per request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
