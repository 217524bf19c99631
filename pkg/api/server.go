package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ghostfacexx/nfcmitm/internal/logger"
)

// Server is the HTTP front end: the stateless JSON relay plus health and
// admin endpoints. It runs alongside the TCP relay and supports graceful
// shutdown.
type Server struct {
	server       *http.Server
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates the HTTP server in a stopped state; call Start to serve.
// Defaults are applied here so directly constructed servers (tests) behave
// like configured ones.
func NewServer(config APIConfig, deps RouterDeps) *Server {
	config.applyDefaults()

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      NewRouter(config, deps),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
	}
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP relay server listening", "port", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("HTTP server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("HTTP server failed: %w", err)
	}
}

// Stop shuts the server down gracefully. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
		} else {
			logger.Info("HTTP server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.config.Port
}
