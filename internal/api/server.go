// Package api exposes the HTTP surface for scoring, alert review,
// analytics and rule management.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vigilant-watch/vigilant/internal/domain"
	"github.com/vigilant-watch/vigilant/internal/ml"
	"github.com/vigilant-watch/vigilant/internal/notify"
	"github.com/vigilant-watch/vigilant/internal/rules"
	"github.com/vigilant-watch/vigilant/internal/scoring"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server with the full middleware stack and
// route table.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, pipeline *scoring.Pipeline, engine *rules.Engine, ticker *notify.Ticker, classifier ml.Classifier, version string) *Server {
	handler := NewHandler(repo, cache, pipeline, engine, ticker, classifier, version)
	router := chi.NewRouter()

	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	router.Route("/api/v1", func(r chi.Router) {
		// Scoring and retrieval
		r.Post("/transactions", handler.ScoreTransaction)
		r.Get("/transactions", handler.ListTransactions)
		r.Get("/transactions/{id}", handler.GetTransaction)

		// Alert review workflow
		r.Get("/alerts", handler.ListAlerts)
		r.Post("/alerts/mark-read", handler.MarkAlertsRead)
		r.Get("/alerts/ticker", handler.AlertTicker)

		// Analytics
		r.Get("/analytics/anomaly", handler.AnomalySummary)
		r.Get("/analytics/fraud-by-category", handler.FraudByCategory)
		r.Get("/analytics/rule-contribution", handler.RuleContribution)

		// Rule management
		r.Get("/rules", handler.ListRules)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
