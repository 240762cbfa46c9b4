package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/marmos91/formflow/internal/logger"
	"github.com/marmos91/formflow/pkg/multipart"
	"github.com/marmos91/formflow/pkg/store"
)

// Server provides the upload gateway HTTP server.
//
// Endpoints:
//   - POST /upload: Streaming multipart upload
//   - GET /health: Liveness probe
//   - GET /health/ready: Readiness probe
//   - GET /health/store: Store health
//   - GET /metrics: Prometheus exposition
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates a new gateway HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests.
//
// Defaults are applied here so the server works correctly even when
// created directly (e.g., in tests). This is idempotent with the defaults
// applied during config loading.
func NewServer(config Config, st store.Store, decOptions ...multipart.Option) *Server {
	config.applyDefaults()

	router := NewRouter(st, config.RequestTimeout, decOptions...)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           router,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	return &Server{
		server: server,
		config: config,
	}
}

// Start starts the gateway and blocks until the context is cancelled or
// an error occurs. Cancellation triggers graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("upload gateway listening", "port", s.config.Port)
		logger.Debug("endpoints available",
			"upload", fmt.Sprintf("http://localhost:%d/upload", s.config.Port),
			"health", fmt.Sprintf("http://localhost:%d/health", s.config.Port),
			"metrics", fmt.Sprintf("http://localhost:%d/metrics", s.config.Port),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("gateway shutdown signal received")
		// Don't use the cancelled ctx; it would abort the graceful drain
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("gateway failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the gateway.
//
// Stop is safe to call multiple times and safe to call concurrently with
// Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("gateway shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("gateway shutdown error: %w", err)
			logger.Error("gateway shutdown error", "error", err)
		} else {
			logger.Info("gateway stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
