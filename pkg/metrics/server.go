package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/rpcboot/internal/logger"
)

// ReadinessFunc reports whether the application is ready to serve.
type ReadinessFunc func() (ready bool, state string)

// Server is the lifecycle unit exposing the registry over HTTP.
//
// Endpoints:
//   - GET /metrics: Prometheus exposition
//   - GET /health: Liveness probe
//   - GET /health/ready: Readiness probe
type Server struct {
	port     int
	registry *prometheus.Registry
	ready    ReadinessFunc

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	served   chan struct{}
}

// NewServer creates a metrics server on port (0 picks a free port).
// ready may be nil, in which case the server is always ready.
func NewServer(port int, registry *prometheus.Registry, ready ReadinessFunc) *Server {
	return &Server{port: port, registry: registry, ready: ready}
}

// Name implements lifecycle.Named.
func (s *Server) Name() string {
	return "metrics"
}

// NewRouter builds the HTTP handler of the server.
func (s *Server) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		Registry:          s.registry,
		EnableOpenMetrics: true,
	}))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		ready, state := true, "running"
		if s.ready != nil {
			ready, state = s.ready()
		}
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{"ready": ready, "state": state})
	})
	return r
}

// Start implements lifecycle.Unit.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}
	if s.registry == nil {
		return errors.New("metrics server: registry not initialized")
	}

	lis, err := net.Listen("tcp", ":"+strconv.Itoa(s.port))
	if err != nil {
		return fmt.Errorf("metrics server: failed to listen on port %d: %w", s.port, err)
	}

	server := &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", logger.Err(err))
		}
	}()

	s.server, s.listener, s.served = server, lis, served
	logger.Info("Metrics server listening", logger.KeyAddress, lis.Addr().String())
	return nil
}

// Stop implements lifecycle.Unit.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server, served := s.server, s.served
	s.server, s.listener = nil, nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	err := server.Shutdown(ctx)
	<-served
	if err != nil {
		return fmt.Errorf("metrics server shutdown error: %w", err)
	}
	logger.Debug("Metrics server stopped")
	return nil
}

// IsRunning implements lifecycle.Unit.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

// Addr returns the bound address while running, nil otherwise.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
