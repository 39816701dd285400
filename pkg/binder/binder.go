// Package binder pairs generated RPC wrappers with the handler
// implementations an application provides.
//
// A contract is a declaration that encloses a handler interface (by default
// called "Iface") and a processor wrapper whose constructor takes that
// interface. The binder finds every processor in a scope, looks up its
// contract and handler interface, and pairs it with the single concrete type
// in scope implementing the interface, skipping the contract's own nested
// stubs.
package binder

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/marmos91/rpcboot/internal/logger"
	"github.com/marmos91/rpcboot/pkg/discovery"
)

// Binding outcomes reported to Metrics.
const (
	OutcomeBound        = "bound"
	OutcomeAmbiguous    = "ambiguous"
	OutcomeNoCandidates = "no_candidates"
	OutcomeNoDefault    = "no_default_constructor"
	OutcomeFailed       = "failed"
)

// Metrics records the outcome of each bind pass. A nil Metrics disables
// collection.
type Metrics interface {
	ObserveBind(scope, outcome string, bindings int)
}

// Binding is one wrapper paired with its implementation.
type Binding struct {
	Handler        *discovery.Decl
	Wrapper        *discovery.Decl
	Implementation *discovery.Decl

	// Processor is the wrapper instance built around the implementation.
	Processor any
}

// Option configures a Binder.
type Option func(*Binder)

// WithStrategy replaces the handler interface lookup.
func WithStrategy(s MatchStrategy) Option {
	return func(b *Binder) {
		if s != nil {
			b.strategy = s
		}
	}
}

// WithAmbiguity selects the ambiguity rule. WholeScope is the default.
func WithAmbiguity(a Ambiguity) Option {
	return func(b *Binder) {
		b.ambiguity = a
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(b *Binder) {
		b.metrics = m
	}
}

// Binder discovers processors and binds them to implementations.
type Binder struct {
	universe  discovery.Universe
	processor reflect.Type
	strategy  MatchStrategy
	ambiguity Ambiguity
	metrics   Metrics
}

// New creates a binder over u. processor is the interface every wrapper
// type implements.
func New(u discovery.Universe, processor reflect.Type, opts ...Option) *Binder {
	b := &Binder{
		universe:  u,
		processor: processor,
		strategy:  NestedName(DefaultHandlerName),
		ambiguity: WholeScope,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// candidate is a wrapper whose implementation has been accepted but not
// yet instantiated.
type candidate struct {
	handler *discovery.Decl
	wrapper *discovery.Decl
	ctor    discovery.Constructor
	impl    *discovery.Decl
}

// Bind runs one pass over scope. Either every accepted pair is returned, or
// none: ambiguity and a missing zero-argument constructor abort the pass.
func (b *Binder) Bind(scope string) ([]Binding, error) {
	bindings, err := b.bind(scope)
	b.observe(scope, bindings, err)
	return bindings, err
}

func (b *Binder) bind(scope string) ([]Binding, error) {
	processors, err := discovery.Discover(b.universe, scope, b.processor)
	if err != nil {
		return nil, err
	}

	var accepted []candidate
	for _, wrapper := range processors {
		contract := b.universe.Enclosing(wrapper)
		if contract == nil {
			logger.Debug("Skipping processor outside a contract", logger.KeyWrapper, wrapper.String())
			continue
		}

		handler, ok := b.strategy.HandlerInterface(contract)
		if !ok {
			logger.Debug("Skipping contract without a handler interface", logger.Contract(contract.String()))
			continue
		}

		ctor, ok := wrapper.ConstructorFor(handler.Type())
		if !ok {
			logger.Debug("Skipping processor without a handler constructor",
				logger.KeyWrapper, wrapper.String(),
				logger.KeyHandler, handler.String())
			continue
		}

		impls, err := discovery.Discover(b.universe, scope, handler.Type())
		if err != nil {
			return nil, err
		}

		var found *discovery.Decl
		for _, impl := range impls {
			if impl.Within(contract) {
				continue
			}

			if b.alreadyBound(accepted, found) {
				logger.Error("Found multiple implementations, binding nothing",
					logger.Scope(scope),
					logger.Contract(contract.String()),
					logger.KeyImplementation, impl.String())
				return nil, fmt.Errorf("%w: %s also implements %s", ErrAmbiguousBinding, impl, handler)
			}

			if _, ok := impl.DefaultConstructor(); !ok {
				logger.Error("Implementation has no zero-argument constructor, binding nothing",
					logger.Contract(contract.String()),
					logger.KeyImplementation, impl.String())
				return nil, fmt.Errorf("%w: %s", discovery.ErrNoDefaultConstructor, impl)
			}

			found = impl
			accepted = append(accepted, candidate{handler: handler, wrapper: wrapper, ctor: ctor, impl: impl})
		}
	}

	if len(accepted) == 0 {
		logger.Info("No implementations found to bind", logger.Scope(scope))
		return nil, fmt.Errorf("%w in %s", ErrNoCandidates, scope)
	}

	bindings := make([]Binding, 0, len(accepted))
	for _, c := range accepted {
		impl, err := discovery.Instantiate(c.impl)
		if err != nil {
			return nil, err
		}
		processor, err := c.ctor.Call(impl)
		if err != nil {
			return nil, fmt.Errorf("wrap %s in %s: %w", c.impl, c.wrapper, err)
		}

		logger.Info("Bound implementation",
			logger.KeyWrapper, c.wrapper.String(),
			logger.KeyHandler, c.handler.String(),
			logger.KeyImplementation, c.impl.String())
		bindings = append(bindings, Binding{
			Handler:        c.handler,
			Wrapper:        c.wrapper,
			Implementation: c.impl,
			Processor:      processor,
		})
	}
	return bindings, nil
}

// alreadyBound reports whether accepting another implementer would be
// ambiguous. found is the implementer accepted for the current contract.
func (b *Binder) alreadyBound(accepted []candidate, found *discovery.Decl) bool {
	if b.ambiguity == PerContract {
		return found != nil
	}
	return len(accepted) > 0
}

func (b *Binder) observe(scope string, bindings []Binding, err error) {
	if b.metrics == nil {
		return
	}

	var outcome string
	switch {
	case err == nil:
		outcome = OutcomeBound
	case errors.Is(err, ErrAmbiguousBinding):
		outcome = OutcomeAmbiguous
	case errors.Is(err, ErrNoCandidates):
		outcome = OutcomeNoCandidates
	case errors.Is(err, discovery.ErrNoDefaultConstructor):
		outcome = OutcomeNoDefault
	default:
		outcome = OutcomeFailed
	}
	b.metrics.ObserveBind(scope, outcome, len(bindings))
}
