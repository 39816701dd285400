package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/marmos91/rpcboot/internal/logger"
)

// DefaultStopTimeout bounds how long Stop waits for a single child.
const DefaultStopTimeout = 30 * time.Second

// Metrics records per-unit start and stop outcomes. A nil Metrics disables
// collection.
type Metrics interface {
	ObserveStart(unit string, duration time.Duration, err error)
	ObserveStop(unit string, duration time.Duration, err error)
}

// Composite is an ordered collection of units that is itself a Unit.
//
// Children start in append order and stop in reverse append order. The
// composite only reports running once every child started successfully.
type Composite struct {
	name        string
	stopTimeout time.Duration
	metrics     Metrics

	mu      sync.Mutex
	units   []Unit
	running bool

	hookOnce sync.Once
	hookQuit chan struct{}
	hookStop sync.Once
	done     chan struct{}
}

// CompositeOption configures a Composite.
type CompositeOption func(*Composite)

// WithStopTimeout sets the per-child stop bound. Zero or negative values
// select DefaultStopTimeout.
func WithStopTimeout(d time.Duration) CompositeOption {
	return func(c *Composite) {
		if d > 0 {
			c.stopTimeout = d
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m Metrics) CompositeOption {
	return func(c *Composite) {
		c.metrics = m
	}
}

// WithName sets the name reported for the composite itself.
func WithName(name string) CompositeOption {
	return func(c *Composite) {
		c.name = name
	}
}

// NewComposite creates an empty composite.
func NewComposite(opts ...CompositeOption) *Composite {
	c := &Composite{
		name:        "composite",
		stopTimeout: DefaultStopTimeout,
		hookQuit:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Named.
func (c *Composite) Name() string {
	return c.name
}

// Append adds unit to the end of the sequence and returns the composite for
// chaining. The same unit may be appended more than once.
func (c *Composite) Append(unit Unit) *Composite {
	if unit == nil {
		return c
	}
	c.mu.Lock()
	c.units = append(c.units, unit)
	c.mu.Unlock()
	return c
}

// Len returns the number of children.
func (c *Composite) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.units)
}

// Units returns a copy of the children in append order.
func (c *Composite) Units() []Unit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Unit(nil), c.units...)
}

// IsRunning implements Unit.
func (c *Composite) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start starts every child that is not already running, in append order.
//
// The first child error aborts the sequence: later children are not
// started and the composite stays not running. Children started before the
// failure are left running; callers abort the boot by calling Stop.
func (c *Composite) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	logger.Debug("Starting lifecycle units", logger.KeyUnit, c.name, logger.KeyUnits, len(c.units))

	for i, unit := range c.units {
		if unit.IsRunning() {
			continue
		}
		name := NameOf(unit)

		start := time.Now()
		err := unit.Start(ctx)
		if c.metrics != nil {
			c.metrics.ObserveStart(name, time.Since(start), err)
		}
		if err != nil {
			logger.Error("Lifecycle unit failed to start",
				logger.KeyUnit, name,
				logger.KeyPosition, i,
				logger.KeyError, err)
			return fmt.Errorf("start %s: %w", name, err)
		}
		logger.Debug("Lifecycle unit started", logger.KeyUnit, name, logger.KeyPosition, i, logger.DurationMs(start))
	}

	c.running = true
	return nil
}

// Stop stops every running child in reverse append order.
//
// A child that fails or exceeds the stop timeout is logged and skipped so
// the remaining children still get released. The returned error joins every
// child failure.
func (c *Composite) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = false

	var errs []error
	for i := len(c.units) - 1; i >= 0; i-- {
		unit := c.units[i]
		if !unit.IsRunning() {
			continue
		}
		name := NameOf(unit)

		start := time.Now()
		err := c.stopUnit(ctx, unit)
		if c.metrics != nil {
			c.metrics.ObserveStop(name, time.Since(start), err)
		}
		if err != nil {
			logger.Warn("Lifecycle unit failed to stop",
				logger.KeyUnit, name,
				logger.KeyPosition, i,
				logger.KeyError, err)
			errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
			continue
		}
		logger.Debug("Lifecycle unit stopped", logger.KeyUnit, name, logger.KeyPosition, i, logger.DurationMs(start))
	}

	return errors.Join(errs...)
}

// stopUnit calls unit.Stop bounded by the stop timeout. A unit that does not
// return in time is abandoned; its goroutine finishes in the background.
func (c *Composite) stopUnit(ctx context.Context, unit Unit) error {
	stopCtx, cancel := context.WithTimeout(ctx, c.stopTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- unit.Stop(stopCtx)
	}()

	select {
	case err := <-result:
		return err
	case <-stopCtx.Done():
		return fmt.Errorf("stop timed out after %s: %w", c.stopTimeout, stopCtx.Err())
	}
}

// WithShutdownHook arranges for Stop to run when the process receives one
// of signals (SIGINT and SIGTERM when none are given). It may be called
// before Start; only the first call installs a hook.
func (c *Composite) WithShutdownHook(signals ...os.Signal) *Composite {
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	c.hookOnce.Do(func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, signals...)

		go func() {
			defer signal.Stop(sigCh)

			select {
			case sig := <-sigCh:
				logger.Info("Shutdown signal received", logger.KeyUnit, c.name, "signal", sig.String())
				ctx := context.Background()
				if err := c.Stop(ctx); err != nil {
					logger.Error("Shutdown completed with errors", logger.KeyUnit, c.name, logger.KeyError, err)
				}
				close(c.done)
			case <-c.hookQuit:
			}
		}()
	})
	return c
}

// ReleaseShutdownHook uninstalls the signal hook without stopping the
// composite. It is safe to call when no hook was installed.
func (c *Composite) ReleaseShutdownHook() {
	c.hookStop.Do(func() {
		close(c.hookQuit)
	})
}

// Done is closed once a signal-triggered Stop has completed.
func (c *Composite) Done() <-chan struct{} {
	return c.done
}
