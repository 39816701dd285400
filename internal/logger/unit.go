package logger

import (
	"context"
	"fmt"
	"sync"
)

// Unit is the lifecycle unit that switches the process from the early console
// logger to the configured one. Stop flushes and closes any log file and
// returns to console logging.
type Unit struct {
	load func() (Config, error)

	mu      sync.Mutex
	started bool
}

// NewUnit creates a logging unit. load is evaluated on every Start so a
// reloaded configuration is honoured after a restart of the unit.
func NewUnit(load func() (Config, error)) *Unit {
	return &Unit{load: load}
}

// Name implements lifecycle.Named.
func (u *Unit) Name() string {
	return "logging"
}

// Start implements lifecycle.Unit.
func (u *Unit) Start(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.started {
		return nil
	}

	cfg := Config{}
	if u.load != nil {
		loaded, err := u.load()
		if err != nil {
			return fmt.Errorf("load logging configuration: %w", err)
		}
		cfg = loaded
	}

	if err := Init(cfg); err != nil {
		return err
	}

	u.started = true
	Debug("Logging configured", "level", CurrentLevel().String(), "format", cfg.Format, "output", cfg.Output)
	return nil
}

// Stop implements lifecycle.Unit.
func (u *Unit) Stop(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.started {
		return nil
	}
	Reset()
	u.started = false
	return nil
}

// IsRunning implements lifecycle.Unit.
func (u *Unit) IsRunning() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.started
}
