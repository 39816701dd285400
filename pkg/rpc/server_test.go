package rpc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/marmos91/rpcboot/pkg/config"
)

const echoMethod = "/rpcboot.test.Echo/Echo"

type echoHandler interface {
	Echo(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

var echoDesc = grpc.ServiceDesc{
	ServiceName: "rpcboot.test.Echo",
	HandlerType: (*echoHandler)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Echo",
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(wrapperspb.StringValue)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return srv.(echoHandler).Echo(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: echoMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return srv.(echoHandler).Echo(ctx, req.(*wrapperspb.StringValue))
			})
		},
	}},
}

type echo struct {
	release chan struct{}
	entered chan struct{}
}

func (e *echo) Echo(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if e.entered != nil {
		e.entered <- struct{}{}
	}
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return wrapperspb.String("echo: " + in.GetValue()), nil
}

type echoProcessor struct{ BaseProcessor }

func newEchoProcessor(h echoHandler) *echoProcessor {
	return &echoProcessor{NewBaseProcessor(&echoDesc, h)}
}

func newStore(t *testing.T, values map[string]any) *config.Store {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	s := config.NewStore("echo")
	for k, v := range values {
		s.Set(k, v)
	}
	return s
}

func startServer(t *testing.T, s *Server) {
	t.Helper()
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
}

func dial(t *testing.T, s *Server) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(s.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func call(ctx context.Context, conn *grpc.ClientConn, value string) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := conn.Invoke(ctx, echoMethod, wrapperspb.String(value), out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func TestServerServesProcessor(t *testing.T) {
	cfg := newStore(t, map[string]any{"echo.thrift.listenPort": 0})
	server := NewServer(newEchoProcessor(&echo{}), cfg, "echo", WithReflection(true))

	assert.False(t, server.IsRunning())
	assert.Nil(t, server.Addr())
	startServer(t, server)
	assert.True(t, server.IsRunning())
	assert.Equal(t, "rpc:echo", server.Name())
	assert.Equal(t, "rpcboot.test.Echo", ServiceName(server.Processor()))

	conn := dial(t, server)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := call(ctx, conn, "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", got)

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: "rpcboot.test.Echo"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	require.NoError(t, server.Stop(context.Background()))
	assert.False(t, server.IsRunning())
	require.NoError(t, server.Stop(context.Background()), "stop is idempotent")
}

func TestServerRequiresListenPort(t *testing.T) {
	cfg := newStore(t, nil)
	server := NewServer(newEchoProcessor(&echo{}), cfg, "echo")

	err := server.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingMandatoryConfig)
	assert.Contains(t, err.Error(), "echo.thrift.listenPort")
	assert.False(t, server.IsRunning())
}

func TestServerUsesNameAsKeyPrefix(t *testing.T) {
	cfg := newStore(t, map[string]any{
		"echo.thrift.listenPort":  "not-used",
		"other.thrift.listenPort": 0,
	})
	server := NewServer(newEchoProcessor(&echo{}), cfg, "other")
	startServer(t, server)
	assert.Equal(t, "other", server.ConfigName())
	assert.NotNil(t, server.Addr())
}

func TestServerRestart(t *testing.T) {
	cfg := newStore(t, map[string]any{"echo.thrift.listenPort": 0})
	server := NewServer(newEchoProcessor(&echo{}), cfg, "echo")

	startServer(t, server)
	require.NoError(t, server.Stop(context.Background()))
	require.NoError(t, server.Start(context.Background()))
	require.NoError(t, server.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := call(ctx, dial(t, server), "again")
	require.NoError(t, err)
	assert.Equal(t, "echo: again", got)
}

func TestServerWorkerLimit(t *testing.T) {
	cfg := newStore(t, map[string]any{
		"echo.thrift.listenPort":    0,
		"echo.thrift.workerThreads": 1,
	})
	handler := &echo{release: make(chan struct{}), entered: make(chan struct{}, 2)}
	server := NewServer(newEchoProcessor(handler), cfg, "echo")
	startServer(t, server)
	conn := dial(t, server)

	first := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := call(ctx, conn, "first")
		first <- err
	}()

	select {
	case <-handler.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first call never reached the handler")
	}

	// The only worker is busy, so the second call waits out its deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := call(ctx, conn, "second")
	require.Error(t, err)
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))

	close(handler.release)
	require.NoError(t, <-first)
}

func TestServerStopTimeout(t *testing.T) {
	cfg := newStore(t, map[string]any{
		"echo.thrift.listenPort":            0,
		"echo.thrift.shutdownTimeoutMillis": 50,
	})
	handler := &echo{release: make(chan struct{}), entered: make(chan struct{}, 1)}
	defer close(handler.release)

	server := NewServer(newEchoProcessor(handler), cfg, "echo")
	startServer(t, server)
	conn := dial(t, server)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = call(ctx, conn, "stuck")
	}()
	<-handler.entered

	err := server.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.False(t, server.IsRunning())
}

type recordingMetrics struct {
	mu       sync.Mutex
	started  int
	finished map[string]int
}

func (m *recordingMetrics) RequestStarted(_, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *recordingMetrics) RequestFinished(service, method, code string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[service+"/"+method+":"+code]++
}

func TestServerMetrics(t *testing.T) {
	cfg := newStore(t, map[string]any{"echo.thrift.listenPort": 0})
	m := &recordingMetrics{finished: map[string]int{}}
	server := NewServer(newEchoProcessor(&echo{}), cfg, "echo", WithMetrics(m))
	startServer(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := call(ctx, dial(t, server), "count me")
	require.NoError(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.started)
	assert.Equal(t, 1, m.finished["rpcboot.test.Echo/Echo:OK"])
}

func TestLoadSettings(t *testing.T) {
	cfg := newStore(t, map[string]any{
		"echo.thrift.listenPort":      "7911",
		"echo.thrift.bindAddress":     "127.0.0.1",
		"echo.thrift.selectorThreads": 4,
	})

	s, err := LoadSettings(cfg, "echo")
	require.NoError(t, err)
	assert.Equal(t, Settings{
		ListenPort:      7911,
		BindAddress:     "127.0.0.1",
		SelectorThreads: 4,
		ShutdownTimeout: DefaultShutdownTimeout,
	}, s)

	tests := []struct {
		name   string
		values map[string]any
	}{
		{name: "port out of range", values: map[string]any{"echo.thrift.listenPort": 70000}},
		{name: "port not a number", values: map[string]any{"echo.thrift.listenPort": "http"}},
		{name: "negative workers", values: map[string]any{"echo.thrift.listenPort": 1, "echo.thrift.workerThreads": -1}},
		{name: "bad timeout", values: map[string]any{"echo.thrift.listenPort": 1, "echo.thrift.shutdownTimeoutMillis": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSettings(newStore(t, tt.values), "echo")
			assert.Error(t, err)
		})
	}
}

func TestSplitMethod(t *testing.T) {
	service, method := splitMethod("/pkg.Service/Method")
	assert.Equal(t, "pkg.Service", service)
	assert.Equal(t, "Method", method)

	service, method = splitMethod("bare")
	assert.Equal(t, "unknown", service)
	assert.Equal(t, "bare", method)
}
