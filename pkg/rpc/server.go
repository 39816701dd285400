package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/marmos91/rpcboot/internal/logger"
	"github.com/marmos91/rpcboot/pkg/config"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMetrics attaches an RPC metrics recorder.
func WithMetrics(m Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithGRPCOptions appends raw gRPC server options.
func WithGRPCOptions(opts ...grpc.ServerOption) ServerOption {
	return func(s *Server) {
		s.extra = append(s.extra, opts...)
	}
}

// WithReflection registers the gRPC reflection service.
func WithReflection(enabled bool) ServerOption {
	return func(s *Server) {
		s.reflection = enabled
	}
}

// Server is the lifecycle unit serving one processor. Its settings are read
// from "<name>.thrift.*" at every Start.
type Server struct {
	processor  Processor
	cfg        config.Reader
	name       string
	metrics    Metrics
	extra      []grpc.ServerOption
	reflection bool

	mu       sync.Mutex
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	settings Settings
	served   chan struct{}
}

// NewServer creates a server for p configured under name.
func NewServer(p Processor, cfg config.Reader, name string, opts ...ServerOption) *Server {
	s := &Server{processor: p, cfg: cfg, name: name}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements lifecycle.Named.
func (s *Server) Name() string {
	return "rpc:" + s.name
}

// ConfigName returns the name the server reads its keys under.
func (s *Server) ConfigName() string {
	return s.name
}

// Processor returns the processor being served.
func (s *Server) Processor() Processor {
	return s.processor
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

// IsRunning implements lifecycle.Unit.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

// Start implements lifecycle.Unit. It returns once the listener is bound;
// requests are served on a separate goroutine.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}

	desc := s.processor.ServiceDesc()
	if desc == nil {
		return fmt.Errorf("rpc %s: processor %T has no service description", s.name, s.processor)
	}

	settings, err := LoadSettings(s.cfg, s.name)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", s.name, err)
	}

	addr := net.JoinHostPort(settings.BindAddress, strconv.Itoa(settings.ListenPort))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc %s: failed to listen on %s: %w", s.name, addr, err)
	}

	server := grpc.NewServer(s.serverOptions(settings)...)
	server.RegisterService(desc, s.processor.Handler())

	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(desc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	if s.reflection {
		reflection.Register(server)
	}

	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("RPC server stopped serving", logger.KeyRPCName, s.name, logger.Err(err))
		}
	}()

	s.server = server
	s.health = hs
	s.listener = lis
	s.settings = settings
	s.served = served

	logger.Info("RPC server listening",
		logger.KeyRPCName, s.name,
		logger.Service(desc.ServiceName),
		logger.KeyAddress, lis.Addr().String(),
		"selector_threads", settings.SelectorThreads,
		"worker_threads", settings.WorkerThreads)
	return nil
}

// Stop implements lifecycle.Unit. In-flight calls get shutdownTimeoutMillis
// to finish before the server is stopped forcefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server, hs, served, timeout := s.server, s.health, s.served, s.settings.ShutdownTimeout
	s.server, s.health, s.listener = nil, nil, nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	start := time.Now()
	hs.Shutdown()

	graceful := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(graceful)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case <-graceful:
	case <-timer.C:
		logger.Warn("RPC graceful stop timed out, forcing", logger.KeyRPCName, s.name, logger.KeyTimeout, timeout.String())
		server.Stop()
		err = fmt.Errorf("rpc %s: graceful stop timed out after %s", s.name, timeout)
	case <-ctx.Done():
		server.Stop()
		err = fmt.Errorf("rpc %s: %w", s.name, ctx.Err())
	}
	<-served

	logger.Info("RPC server stopped", logger.KeyRPCName, s.name, logger.DurationMs(start))
	return err
}

func (s *Server) serverOptions(settings Settings) []grpc.ServerOption {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	}

	if settings.SelectorThreads > 0 {
		opts = append(opts, grpc.NumStreamWorkers(uint32(settings.SelectorThreads)))
	}

	var unary []grpc.UnaryServerInterceptor
	var stream []grpc.StreamServerInterceptor
	if s.metrics != nil {
		unary = append(unary, observeUnary(s.metrics))
		stream = append(stream, observeStream(s.metrics))
	}
	if settings.WorkerThreads > 0 {
		sem := semaphore.NewWeighted(int64(settings.WorkerThreads))
		unary = append(unary, limitUnary(sem))
		stream = append(stream, limitStream(sem))
	}
	if len(unary) > 0 {
		opts = append(opts, grpc.ChainUnaryInterceptor(unary...), grpc.ChainStreamInterceptor(stream...))
	}

	return append(opts, s.extra...)
}
