// Package server exposes the self-test commands over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Server wraps the HTTP listener serving the command API.
type Server struct {
	http   *http.Server
	logger *slog.Logger
}

// New builds a server listening on addr. When token is non-empty every
// route except /ping requires it.
func New(addr, token string, commands Commander, hardware HardwareSource, logger *slog.Logger) *Server {
	api := NewAPI(commands, hardware, logger)

	s := &http.Server{
		Addr:              addr,
		Handler:           newRouter(api, token, logger),
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{http: s, logger: logger}
}

func newRouter(api *API, token string, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggingMiddleware(logger))
	if token != "" {
		router.Use(AuthMiddleware(token))
	}
	api.RegisterRoutes(router)
	return router
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
