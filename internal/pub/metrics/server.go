package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ServerConfig holds configuration for the metrics server.
type ServerConfig struct {
	Addr    string        `env:"METRICS_ADDR" envDefault:":9090"`
	Timeout time.Duration `env:"METRICS_TIMEOUT" envDefault:"30s"`
}

// Server exposes /metrics plus liveness and readiness probes. Readiness starts
// true and is dropped with SetReady(false) once the process begins draining.
type Server struct {
	config   ServerConfig
	server   *http.Server
	listener net.Listener
	ready    atomic.Bool
	logger   *zap.Logger
}

func NewServer(config ServerConfig, registry *Registry, logger *zap.Logger) *Server {
	s := &Server{
		config: config,
		logger: logger.Named("metrics-server"),
	}
	s.ready.Store(true)

	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !s.ready.Load() {
			writeStatus(w, http.StatusServiceUnavailable, "draining")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
		IdleTimeout:  config.Timeout * 2,
	}

	return s
}

// Start binds the listener and serves in the background. Bind errors are returned
// directly; serve errors are logged.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = l

	s.logger.Info("starting metrics server", zap.String("addr", l.Addr().String()))
	go func() {
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return nil
}

// SetReady flips the /ready probe.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Stop gracefully stops the server, waiting at most 5s for open requests.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down metrics server: %w", err)
	}
	s.logger.Info("metrics server stopped")

	return nil
}

// Addr returns the bound address once Start succeeded, else the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q,"service":"batchpub"}`, status)
}
