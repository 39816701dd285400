package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/rpcboot/internal/logger"
	"github.com/marmos91/rpcboot/internal/telemetry"
	"github.com/marmos91/rpcboot/pkg/binder"
	"github.com/marmos91/rpcboot/pkg/config"
	"github.com/marmos91/rpcboot/pkg/lifecycle"
	"github.com/marmos91/rpcboot/pkg/metrics"
	prommetrics "github.com/marmos91/rpcboot/pkg/metrics/prometheus"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfigFile reads configuration from path. The file must exist.
func WithConfigFile(path string) Option {
	return func(o *Orchestrator) {
		o.configFile = path
	}
}

// WithConfigStore uses store instead of creating one. The store is started
// and stopped by the orchestrator.
func WithConfigStore(store *config.Store) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithSignals sets the signals that stop the application (SIGINT and
// SIGTERM by default).
func WithSignals(signals ...os.Signal) Option {
	return func(o *Orchestrator) {
		o.signals = signals
	}
}

// WithShutdownHook controls whether a signal handler is installed.
// Enabled by default.
func WithShutdownHook(enabled bool) Option {
	return func(o *Orchestrator) {
		o.hook = enabled
	}
}

// WithVersion sets the version reported to tracing and profiling backends.
func WithVersion(version string) Option {
	return func(o *Orchestrator) {
		o.version = version
	}
}

// WithAmbiguity selects the ambiguity rule of RPC auto-configuration.
func WithAmbiguity(a binder.Ambiguity) Option {
	return func(o *Orchestrator) {
		o.ambiguity = a
	}
}

// WithReflection registers the gRPC reflection service on every RPC server.
func WithReflection(enabled bool) Option {
	return func(o *Orchestrator) {
		o.reflection = enabled
	}
}

// Orchestrator drives the boot sequence of one Application.
//
// Start moves through ConfiguringSupport (configuration, logging and
// observability units started directly so later steps can use them) and
// ConfiguringApplication (the application registers its units) to Running.
// Registration is only accepted while ConfiguringApplication.
type Orchestrator struct {
	app        Application
	store      *config.Store
	configFile string
	signals    []os.Signal
	hook       bool
	version    string
	ambiguity  binder.Ambiguity
	reflection bool
	bootID     string

	mu        sync.RWMutex
	state     State
	composite *lifecycle.Composite
	settings  *config.Settings
	ownsReg   bool
	stopErr   error

	stopped  chan struct{}
	stopOnce sync.Once
}

// New creates an orchestrator for application.
func New(application Application, opts ...Option) (*Orchestrator, error) {
	if application == nil {
		return nil, fmt.Errorf("%w: nil application", ErrInvalidApplication)
	}
	name := strings.TrimSpace(application.Name())
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: empty name", ErrInvalidApplication)
	case strings.ContainsAny(name, ". "):
		return nil, fmt.Errorf("%w: name %q must not contain dots or spaces", ErrInvalidApplication, name)
	case strings.TrimSpace(application.Scope()) == "":
		return nil, fmt.Errorf("%w: %s has an empty scope", ErrInvalidApplication, name)
	case application.Catalog() == nil:
		return nil, fmt.Errorf("%w: %s has no catalog", ErrInvalidApplication, name)
	}

	o := &Orchestrator{
		app:     application,
		hook:    true,
		version: "dev",
		bootID:  uuid.NewString(),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.store == nil {
		var storeOpts []config.StoreOption
		if o.configFile != "" {
			storeOpts = append(storeOpts, config.WithFile(o.configFile))
		}
		o.store = config.NewStore(name, storeOpts...)
	}
	return o, nil
}

// Name returns the application name.
func (o *Orchestrator) Name() string {
	return o.app.Name()
}

// BootID identifies this boot in logs and traces.
func (o *Orchestrator) BootID() string {
	return o.bootID
}

// Config returns the configuration store.
func (o *Orchestrator) Config() *config.Store {
	return o.store
}

// State returns the current boot phase.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Units returns the units of the application lifecycle in start order.
func (o *Orchestrator) Units() []lifecycle.Unit {
	o.mu.RLock()
	composite := o.composite
	o.mu.RUnlock()

	if composite == nil {
		return nil
	}
	return composite.Units()
}

// Settings returns the settings loaded at Start, or nil before.
func (o *Orchestrator) Settings() *config.Settings {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.settings
}

// Done is closed once the application has stopped, either through Stop or
// through a shutdown signal.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.stopped
}

func (o *Orchestrator) transition(ctx context.Context, to State) {
	o.mu.Lock()
	from := o.state
	o.state = to
	o.mu.Unlock()

	logger.DebugCtx(ctx, "Application state changed", logger.KeyFrom, from.String(), logger.KeyTo, to.String())
}

// Start boots the application. Calling Start while running does nothing.
//
// Any error aborts the boot: everything started so far is stopped again and
// the orchestrator ends in the Failed state.
func (o *Orchestrator) Start(ctx context.Context) error {
	switch state := o.State(); state {
	case Running:
		return nil
	case Unconfigured:
	default:
		return fmt.Errorf("%w: cannot start while %s", ErrIllegalState, state)
	}

	lc := logger.NewLogContext(o.Name(), o.bootID)
	ctx = logger.WithContext(ctx, lc.WithPhase(ConfiguringSupport.String()))
	o.transition(ctx, ConfiguringSupport)
	logger.InfoCtx(ctx, "Starting application", logger.KeyScope, o.app.Scope(), "version", o.version)

	support, err := o.startSupport(ctx)
	if err != nil {
		return o.abort(ctx, support, err)
	}

	ctx, span := telemetry.StartBootSpan(ctx, o.Name(), o.bootID, telemetry.Scope(o.app.Scope()))
	defer span.End()
	lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc.WithPhase(ConfiguringApplication.String()))

	settings := o.Settings()
	composite := lifecycle.NewComposite(
		lifecycle.WithName(o.Name()),
		lifecycle.WithStopTimeout(settings.ShutdownTimeout),
		lifecycle.WithMetrics(prommetrics.NewLifecycleMetrics()),
	)
	for _, unit := range support {
		composite.Append(unit)
	}

	setup := newSetup(o, composite)
	o.mu.Lock()
	o.composite = composite
	o.mu.Unlock()
	o.transition(ctx, ConfiguringApplication)

	if err := o.configure(ctx, setup); err != nil {
		telemetry.RecordError(ctx, err)
		return o.abort(ctx, support, err)
	}

	if o.hook {
		composite.WithShutdownHook(o.signals...)
	}

	if err := composite.Start(ctx); err != nil {
		telemetry.RecordError(ctx, err)
		return o.abort(ctx, support, err)
	}

	o.transition(ctx, Running)
	logger.InfoCtx(logger.WithContext(ctx, lc.WithPhase(Running.String())), "Application started",
		logger.KeyUnits, composite.Len(),
		logger.KeyDurationMs, lc.DurationMs())

	if o.hook {
		go o.watchSignalStop(composite)
	}
	return nil
}

// watchSignalStop finishes the shutdown once the signal hook has stopped
// the composite, so the state and readiness follow.
func (o *Orchestrator) watchSignalStop(composite *lifecycle.Composite) {
	select {
	case <-composite.Done():
	case <-o.stopped:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.stopBudget())
	defer cancel()
	_ = o.Stop(ctx)
}

// startSupport starts the units later steps depend on, outside any
// composite. The returned slice holds every unit started so far, also on
// error.
func (o *Orchestrator) startSupport(ctx context.Context) ([]lifecycle.Unit, error) {
	var started []lifecycle.Unit

	if err := o.store.Start(ctx); err != nil {
		return started, fmt.Errorf("start configuration: %w", err)
	}
	started = append(started, o.store)

	settings, err := config.LoadSettings(o.store)
	if err != nil {
		return started, err
	}
	o.mu.Lock()
	o.settings = settings
	o.mu.Unlock()

	if settings.Watch {
		if err := o.store.Watch(); err != nil {
			return started, err
		}
	}
	o.store.OnChange(o.reloaded)

	units := []lifecycle.Unit{
		logger.NewUnit(func() (logger.Config, error) {
			s, err := config.LoadSettings(o.store)
			if err != nil {
				return logger.Config{}, err
			}
			return s.Logging.LoggerConfig(), nil
		}),
	}

	if settings.Metrics.Enabled {
		o.mu.Lock()
		o.ownsReg = !metrics.IsEnabled()
		o.mu.Unlock()
		units = append(units, metrics.NewServer(settings.Metrics.Port, metrics.InitRegistry(), o.ready))
	}

	units = append(units,
		telemetry.NewTracingUnit(func() (telemetry.Config, error) {
			return o.tracingConfig(settings.Telemetry), nil
		}),
		telemetry.NewProfilingUnit(func() (telemetry.ProfilingConfig, error) {
			return o.profilingConfig(settings.Telemetry.Profiling), nil
		}),
	)

	for _, unit := range units {
		if err := unit.Start(ctx); err != nil {
			return started, fmt.Errorf("start %s: %w", lifecycle.NameOf(unit), err)
		}
		started = append(started, unit)
	}
	return started, nil
}

func (o *Orchestrator) configure(ctx context.Context, setup *Setup) error {
	if c, ok := o.app.(Configurer); ok {
		if err := c.Configure(ctx, setup); err != nil {
			return fmt.Errorf("configure %s: %w", o.Name(), err)
		}
		return nil
	}
	setup.AutoConfig(ctx)
	return nil
}

// abort stops what a failed Start left running and records the failure.
func (o *Orchestrator) abort(ctx context.Context, support []lifecycle.Unit, cause error) error {
	o.mu.Lock()
	o.state = Failed
	composite := o.composite
	o.mu.Unlock()

	logger.ErrorCtx(ctx, "Application failed to start", logger.Err(cause))

	stopCtx := context.WithoutCancel(ctx)
	if composite != nil {
		composite.ReleaseShutdownHook()
		if err := composite.Stop(stopCtx); err != nil {
			logger.WarnCtx(ctx, "Cleanup after failed start incomplete", logger.Err(err))
		}
	} else {
		for i := len(support) - 1; i >= 0; i-- {
			if err := support[i].Stop(stopCtx); err != nil {
				logger.WarnCtx(ctx, "Cleanup after failed start incomplete",
					logger.KeyUnit, lifecycle.NameOf(support[i]), logger.Err(err))
			}
		}
	}
	o.releaseRegistry()
	return cause
}

// Stop stops every unit in reverse start order. Stopping an orchestrator
// that is not running does nothing.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if o.state != Running {
		o.mu.Unlock()
		return nil
	}
	o.state = ShuttingDown
	composite := o.composite
	o.mu.Unlock()

	ctx = logger.WithContext(ctx, logger.NewLogContext(o.Name(), o.bootID).WithPhase(ShuttingDown.String()))
	logger.InfoCtx(ctx, "Stopping application")

	composite.ReleaseShutdownHook()
	err := composite.Stop(ctx)
	o.releaseRegistry()
	o.transition(ctx, Stopped)

	o.mu.Lock()
	o.stopErr = err
	o.mu.Unlock()
	o.stopOnce.Do(func() { close(o.stopped) })

	if err != nil {
		logger.WarnCtx(ctx, "Application stopped with errors", logger.Err(err))
		return err
	}
	logger.InfoCtx(ctx, "Application stopped")
	return nil
}

// Run starts the application and blocks until ctx is done or a shutdown
// signal arrives, then stops it.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-o.stopped:
		o.mu.RLock()
		defer o.mu.RUnlock()
		return o.stopErr
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.stopBudget())
	defer cancel()
	return o.Stop(stopCtx)
}

// stopBudget bounds the whole shutdown: every unit may use the per-unit
// timeout.
func (o *Orchestrator) stopBudget() time.Duration {
	timeout := config.DefaultShutdownTimeout
	if s := o.Settings(); s != nil {
		timeout = s.ShutdownTimeout
	}
	return timeout * time.Duration(max(len(o.Units()), 1))
}

func (o *Orchestrator) ready() (bool, string) {
	state := o.State()
	return state == Running, state.String()
}

// reloaded re-applies the settings that can change without a restart.
func (o *Orchestrator) reloaded() {
	settings, err := config.LoadSettings(o.store)
	if err != nil {
		logger.Warn("Ignoring invalid configuration change", logger.KeyApp, o.Name(), logger.Err(err))
		return
	}

	o.mu.Lock()
	previous := o.settings
	o.settings = settings
	o.mu.Unlock()

	if previous == nil || previous.Logging.Level != settings.Logging.Level {
		logger.SetLevel(settings.Logging.Level)
		logger.Info("Log level changed", logger.KeyApp, o.Name(), "level", settings.Logging.Level)
	}
}

func (o *Orchestrator) releaseRegistry() {
	o.mu.Lock()
	owns := o.ownsReg
	o.ownsReg = false
	o.mu.Unlock()

	if owns {
		metrics.Reset()
	}
}

func (o *Orchestrator) tracingConfig(t config.TelemetryConfig) telemetry.Config {
	return telemetry.Config{
		Enabled:        t.Enabled,
		ServiceName:    o.Name(),
		ServiceVersion: o.version,
		Endpoint:       t.Endpoint,
		Insecure:       t.Insecure,
		SampleRate:     t.SampleRate,
	}
}

func (o *Orchestrator) profilingConfig(p config.ProfilingConfig) telemetry.ProfilingConfig {
	return telemetry.ProfilingConfig{
		Enabled:        p.Enabled,
		ServiceName:    o.Name(),
		ServiceVersion: o.version,
		Endpoint:       p.Endpoint,
		ProfileTypes:   p.ProfileTypes,
	}
}
