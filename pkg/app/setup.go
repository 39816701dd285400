package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/marmos91/rpcboot/internal/logger"
	"github.com/marmos91/rpcboot/pkg/binder"
	"github.com/marmos91/rpcboot/pkg/config"
	"github.com/marmos91/rpcboot/pkg/discovery"
	"github.com/marmos91/rpcboot/pkg/lifecycle"
	prommetrics "github.com/marmos91/rpcboot/pkg/metrics/prometheus"
	"github.com/marmos91/rpcboot/pkg/rpc"
)

// Setup is handed to the application while ConfiguringApplication. Every
// registration fails with ErrIllegalState once that phase is over.
type Setup struct {
	o          *Orchestrator
	composite  *lifecycle.Composite
	lifeCycles *LifeCycles
	rpc        *RPCSetup
}

func newSetup(o *Orchestrator, composite *lifecycle.Composite) *Setup {
	s := &Setup{o: o, composite: composite}
	s.lifeCycles = &LifeCycles{setup: s}
	s.rpc = &RPCSetup{setup: s}
	return s
}

// Name returns the application name.
func (s *Setup) Name() string {
	return s.o.Name()
}

// Scope returns the application scope.
func (s *Setup) Scope() string {
	return s.o.app.Scope()
}

// Config returns the started configuration store.
func (s *Setup) Config() *config.Store {
	return s.o.store
}

// LifeCycles returns the lifecycle unit registry.
func (s *Setup) LifeCycles() *LifeCycles {
	return s.lifeCycles
}

// RPC returns the RPC server registry.
func (s *Setup) RPC() *RPCSetup {
	return s.rpc
}

// AutoConfig discovers lifecycle units, then binds the RPC server of the
// application scope. Failures are logged and leave the application with
// whatever was wired.
func (s *Setup) AutoConfig(ctx context.Context) {
	_ = s.lifeCycles.AutoConfig(ctx)
	_ = s.rpc.AutoConfig(ctx)
}

func (s *Setup) checkPhase(op string) error {
	if state := s.o.State(); state != ConfiguringApplication {
		return fmt.Errorf("%w: %s while %s", ErrIllegalState, op, state)
	}
	return nil
}

// LifeCycles appends units to the application lifecycle.
type LifeCycles struct {
	setup *Setup
}

// Append adds unit after every unit registered so far.
func (l *LifeCycles) Append(unit lifecycle.Unit) error {
	if unit == nil {
		return errors.New("nil lifecycle unit")
	}
	if err := l.setup.checkPhase("append " + lifecycle.NameOf(unit)); err != nil {
		return err
	}
	l.setup.composite.Append(unit)
	return nil
}

// AutoConfig appends every lifecycle unit declared in the application scope.
func (l *LifeCycles) AutoConfig(ctx context.Context) error {
	return l.AutoConfigScope(ctx, l.setup.Scope())
}

// AutoConfigScope appends every lifecycle unit declared in scope, in
// declaration order. The first unit that cannot be built ends the batch;
// units appended before it stay appended.
func (l *LifeCycles) AutoConfigScope(ctx context.Context, scope string) error {
	if err := l.setup.checkPhase("auto-configure lifecycle units"); err != nil {
		return err
	}

	decls, err := discovery.Discover(l.setup.o.app.Catalog(), scope, discovery.CapabilityOf[lifecycle.Unit]())
	if err != nil {
		logger.ErrorCtx(ctx, "Lifecycle auto-configuration failed", logger.Scope(scope), logger.Err(err))
		return err
	}

	for _, d := range decls {
		instance, err := discovery.Instantiate(d)
		if err != nil {
			logger.ErrorCtx(ctx, "Cannot auto-configure lifecycle unit, skipping the rest of the scope",
				logger.Scope(scope),
				logger.KeyImplementation, d.String(),
				logger.Err(err))
			return err
		}
		unit := instance.(lifecycle.Unit)
		l.setup.composite.Append(unit)
		logger.DebugCtx(ctx, "Lifecycle unit discovered", logger.UnitName(lifecycle.NameOf(unit)), logger.KeyImplementation, d.String())
	}
	return nil
}

// RPCSetup registers RPC servers.
type RPCSetup struct {
	setup *Setup

	mu      sync.Mutex
	servers []*rpc.Server
}

// Register serves p under the application name, reading
// "<app>.thrift.*".
func (r *RPCSetup) Register(p rpc.Processor) (*rpc.Server, error) {
	return r.RegisterNamed(p, r.setup.Name())
}

// RegisterNamed serves p under name, reading "<name>.thrift.*".
func (r *RPCSetup) RegisterNamed(p rpc.Processor, name string) (*rpc.Server, error) {
	if p == nil {
		return nil, errors.New("nil processor")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("empty server name")
	}
	if err := r.setup.checkPhase("register " + name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registeredLocked(name) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateServer, name)
	}

	o := r.setup.o
	server := rpc.NewServer(p, o.store, name,
		rpc.WithMetrics(prommetrics.NewRPCMetrics()),
		rpc.WithReflection(o.reflection),
	)
	r.setup.composite.Append(server)
	r.servers = append(r.servers, server)

	logger.Info("RPC server registered",
		logger.Service(name),
		logger.KeyRPCName, rpc.ServiceName(p),
		logger.ConfigKey(rpc.Prefix(name)+"."+rpc.KeyListenPort))
	return server, nil
}

func (r *RPCSetup) registeredLocked(name string) bool {
	for _, s := range r.servers {
		if s.ConfigName() == name {
			return true
		}
	}
	return false
}

// Servers returns the registered servers in registration order.
func (r *RPCSetup) Servers() []*rpc.Server {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*rpc.Server(nil), r.servers...)
}

// AutoConfig binds the RPC server of the application scope.
func (r *RPCSetup) AutoConfig(ctx context.Context) error {
	return r.AutoConfigScope(ctx, r.setup.Scope())
}

// AutoConfigScope binds the processors declared in scope to their
// implementations and registers a server for each binding. A single binding
// is served under the application name; with per-contract ambiguity every
// server is named "<app>.<contract>" in lower case. Finding nothing to bind
// is not an error. Any other binding failure, including two contracts that
// would share a server name, registers nothing.
func (r *RPCSetup) AutoConfigScope(ctx context.Context, scope string) error {
	if err := r.setup.checkPhase("auto-configure RPC servers"); err != nil {
		return err
	}

	o := r.setup.o
	b := binder.New(o.app.Catalog(), discovery.CapabilityOf[rpc.Processor](),
		binder.WithAmbiguity(o.ambiguity),
		binder.WithMetrics(prommetrics.NewBindingMetrics()),
	)
	bindings, err := b.Bind(scope)
	switch {
	case errors.Is(err, binder.ErrNoCandidates):
		return nil
	case err != nil:
		logger.ErrorCtx(ctx, "RPC auto-configuration failed, no server registered", logger.Scope(scope), logger.Err(err))
		return err
	}

	processors := make([]rpc.Processor, len(bindings))
	names := make([]string, len(bindings))
	seen := make(map[string]*discovery.Decl, len(bindings))
	for i, binding := range bindings {
		p, ok := binding.Processor.(rpc.Processor)
		if !ok {
			return fmt.Errorf("%s built %T, not an rpc.Processor", binding.Wrapper, binding.Processor)
		}
		contract := binding.Handler.Enclosing()
		name := r.setup.Name()
		if len(bindings) > 1 {
			name += "." + strings.ToLower(contract.Name())
		}
		if other, dup := seen[name]; dup || r.registered(name) {
			err := fmt.Errorf("%w: %s", ErrDuplicateServer, name)
			if dup {
				err = fmt.Errorf("%w: %s and %s both serve as %s", ErrDuplicateServer, other, contract, name)
			}
			logger.ErrorCtx(ctx, "RPC auto-configuration failed, no server registered", logger.Scope(scope), logger.Err(err))
			return err
		}
		seen[name] = contract
		processors[i], names[i] = p, name
	}

	for i, p := range processors {
		if _, err := r.RegisterNamed(p, names[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *RPCSetup) registered(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registeredLocked(name)
}
