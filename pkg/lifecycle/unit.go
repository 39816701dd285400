package lifecycle

import (
	"context"
	"fmt"
	"sync"
)

// Unit is anything with a start/stop lifecycle.
//
// Implementations must treat Start while running and Stop while stopped as
// no-ops rather than errors. Start returning an error leaves the unit in the
// Failed state; it is expected to release whatever it acquired before failing.
type Unit interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
}

// Named is implemented by units that want a readable name in logs and
// metrics. Units without it are reported by their Go type.
type Named interface {
	Name() string
}

// NameOf returns the display name of a unit.
func NameOf(u Unit) string {
	if n, ok := u.(Named); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	return fmt.Sprintf("%T", u)
}

// State is the observable state of a unit.
type State int

const (
	StateStopped State = iota
	StateRunning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateOf derives the state of u given the error returned by its last Start.
func StateOf(u Unit, startErr error) State {
	if u.IsRunning() {
		return StateRunning
	}
	if startErr != nil {
		return StateFailed
	}
	return StateStopped
}

// funcUnit adapts a pair of functions to Unit.
type funcUnit struct {
	name  string
	start func(ctx context.Context) error
	stop  func(ctx context.Context) error

	mu      sync.Mutex
	running bool
}

// Func builds a Unit from start and stop functions. Either may be nil.
// Running state is tracked by the adapter so the functions themselves need
// not be idempotent.
func Func(name string, start, stop func(ctx context.Context) error) Unit {
	return &funcUnit{name: name, start: start, stop: stop}
}

func (f *funcUnit) Name() string { return f.name }

func (f *funcUnit) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return nil
	}
	if f.start != nil {
		if err := f.start(ctx); err != nil {
			return err
		}
	}
	f.running = true
	return nil
}

func (f *funcUnit) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil
	}
	f.running = false
	if f.stop != nil {
		return f.stop(ctx)
	}
	return nil
}

func (f *funcUnit) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}
