package telemetry

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/rpcboot/internal/logger"
)

// TracingUnit installs the OpenTelemetry tracer provider on Start and flushes
// it on Stop.
type TracingUnit struct {
	load func() (Config, error)

	mu       sync.Mutex
	shutdown func(context.Context) error
}

// NewTracingUnit creates a tracing unit. load is evaluated on every Start.
func NewTracingUnit(load func() (Config, error)) *TracingUnit {
	return &TracingUnit{load: load}
}

// Name implements lifecycle.Named.
func (u *TracingUnit) Name() string {
	return "tracing"
}

// Start implements lifecycle.Unit.
func (u *TracingUnit) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.shutdown != nil {
		return nil
	}

	cfg, err := u.load()
	if err != nil {
		return fmt.Errorf("load telemetry configuration: %w", err)
	}

	shutdown, err := Init(ctx, cfg)
	if err != nil {
		return err
	}
	u.shutdown = shutdown

	if cfg.Enabled {
		logger.Info("Tracing enabled", "endpoint", cfg.Endpoint, "sample_rate", cfg.SampleRate)
	}
	return nil
}

// Stop implements lifecycle.Unit.
func (u *TracingUnit) Stop(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.shutdown == nil {
		return nil
	}
	err := u.shutdown(ctx)
	u.shutdown = nil
	if err != nil {
		return fmt.Errorf("flush traces: %w", err)
	}
	return nil
}

// IsRunning implements lifecycle.Unit.
func (u *TracingUnit) IsRunning() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.shutdown != nil
}

// ProfilingUnit runs the Pyroscope profiler between Start and Stop.
type ProfilingUnit struct {
	load func() (ProfilingConfig, error)

	mu   sync.Mutex
	stop func() error
}

// NewProfilingUnit creates a profiling unit. load is evaluated on every Start.
func NewProfilingUnit(load func() (ProfilingConfig, error)) *ProfilingUnit {
	return &ProfilingUnit{load: load}
}

// Name implements lifecycle.Named.
func (u *ProfilingUnit) Name() string {
	return "profiling"
}

// Start implements lifecycle.Unit.
func (u *ProfilingUnit) Start(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.stop != nil {
		return nil
	}

	cfg, err := u.load()
	if err != nil {
		return fmt.Errorf("load profiling configuration: %w", err)
	}

	stop, err := InitProfiling(cfg)
	if err != nil {
		return err
	}
	u.stop = stop

	if cfg.Enabled {
		logger.Info("Profiling enabled", "endpoint", cfg.Endpoint, "profile_types", cfg.ProfileTypes)
	}
	return nil
}

// Stop implements lifecycle.Unit.
func (u *ProfilingUnit) Stop(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.stop == nil {
		return nil
	}
	err := u.stop()
	u.stop = nil
	return err
}

// IsRunning implements lifecycle.Unit.
func (u *ProfilingUnit) IsRunning() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stop != nil
}
