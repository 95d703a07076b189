package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/FairForge/recoverd/internal/config"
	"github.com/FairForge/recoverd/internal/service"
)

// Reloader is the optional hook behind POST /api/v1/config/reload.
type Reloader interface {
	Reload() error
}

// Server exposes the operational surface over HTTP for operators and
// CI tooling.
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	svc        *service.Service
	reloader   Reloader
	router     chi.Router
	httpServer *http.Server
	limiter    *rate.Limiter
	startTime  time.Time
}

// NewServer builds the admin server.
func NewServer(cfg *config.Config, svc *service.Service, reloader Reloader, logger *zap.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		svc:       svc,
		reloader:  reloader,
		router:    chi.NewRouter(),
		limiter:   rate.NewLimiter(rate.Limit(50), 100),
		startTime: time.Now(),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // restores can be slow
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestLogger)
	s.router.Use(s.rateLimit)

	s.router.Get("/healthz", s.handleLiveness)
	s.router.Handle("/metrics", promhttp.HandlerFor(
		s.svc.Metrics().Registry(), promhttp.HandlerOpts{}))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/backups", s.handleCreateBackup)
		r.Get("/backups", s.handleListBackups)
		r.Get("/backups/{id}", s.handleGetBackup)
		r.Post("/backups/{id}/restore", s.handleRestore)
		r.Get("/health", s.handleHealthStatus)
		r.Post("/drtest", s.handleRunTest)
		r.Get("/report", s.handleReport)
		r.Post("/config/reload", s.handleReload)
	})
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start blocks serving HTTP until shutdown.
func (s *Server) Start() error {
	s.logger.Info("admin server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeError(w, http.StatusNotImplemented, "config_reload_disabled",
			fmt.Errorf("no config file configured"))
		return
	}
	if err := s.reloader.Reload(); err != nil {
		writeError(w, http.StatusBadRequest, "config_invalid", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  kind,
	})
}
