package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"market-simulator-go/internal/config"
	"market-simulator-go/internal/ledger"
	"market-simulator-go/internal/market"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Server provides the HTTP interface over the simulation engine and the
// trading ledger.
type Server struct {
	httpServer *http.Server
	engine     *market.Engine
	ledger     *ledger.Ledger
	cfg        *config.Config
	logger     *zap.Logger
}

// NewServer creates a new API server with all routes registered.
func NewServer(cfg *config.Config, logger *zap.Logger, engine *market.Engine, ldg *ledger.Ledger) *Server {
	s := &Server{
		engine: engine,
		ledger: ldg,
		cfg:    cfg,
		logger: logger.Named("api-server"),
	}

	r := chi.NewRouter()
	r.Use(requestLogging(s.logger))

	r.Get("/health", s.healthHandler)
	r.Get("/stocks", s.listStocksHandler)
	r.Get("/stocks/{symbol}/history", s.priceHistoryHandler)
	r.Post("/simulate/step", s.simulateStepHandler)
	r.Post("/trade", s.tradeHandler)
	r.Post("/users", s.createUserHandler)
	r.Get("/users", s.listUsersHandler)
	r.Get("/users/{userID}/portfolio", s.portfolioHandler)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.httpServer.Shutdown(ctx)
}

// requestLogging returns middleware that logs each request's method,
// path, status code and duration.
func requestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}
