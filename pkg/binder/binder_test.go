package binder

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/rpcboot/pkg/discovery"
)

const scope = "example.com/svc"

type processor interface {
	ServiceName() string
}

// Greeter contract.

type greeterIface interface {
	Greet(name string) string
}

type greeterProcessor struct{ handler greeterIface }

func (p *greeterProcessor) ServiceName() string { return "Greeter" }

func newGreeterProcessor(h greeterIface) *greeterProcessor { return &greeterProcessor{handler: h} }

type greeterStub struct{}

func (greeterStub) Greet(string) string { return "" }

func newGreeterStub() *greeterStub { return &greeterStub{} }

// Counter contract.

type counterIface interface {
	Count() int
}

type counterProcessor struct{ handler counterIface }

func (p *counterProcessor) ServiceName() string { return "Counter" }

func newCounterProcessor(h counterIface) *counterProcessor { return &counterProcessor{handler: h} }

// Implementations.

type politeGreeter struct{}

func (politeGreeter) Greet(name string) string { return "good day " + name }

func newPoliteGreeter() *politeGreeter { return &politeGreeter{} }

type rudeGreeter struct{ word string }

func (g *rudeGreeter) Greet(name string) string { return g.word + " " + name }

func newRudeGreeter() *rudeGreeter { return &rudeGreeter{word: "oi"} }

func newRudeGreeterWith(word string) *rudeGreeter { return &rudeGreeter{word: word} }

type counter struct{}

func (counter) Count() int { return 7 }

func newCounter() *counter { return &counter{} }

func newFailingGreeter() (*politeGreeter, error) { return nil, errors.New("no database") }

func addGreeterContract(cat *discovery.Catalog, path string) *discovery.Decl {
	contract := cat.Add(path, discovery.Namespace("Greeter"))
	contract.Nest(discovery.Type[greeterIface]("Iface"))
	contract.Nest(discovery.Type[*greeterProcessor]("Processor", newGreeterProcessor))
	contract.Nest(discovery.Type[*greeterStub]("Stub", newGreeterStub))
	return contract
}

func addCounterContract(cat *discovery.Catalog, path string) {
	contract := cat.Add(path, discovery.Namespace("Counter"))
	contract.Nest(discovery.Type[counterIface]("Iface"))
	contract.Nest(discovery.Type[*counterProcessor]("Processor", newCounterProcessor))
}

func newBinder(cat *discovery.Catalog, opts ...Option) *Binder {
	return New(cat, discovery.CapabilityOf[processor](), opts...)
}

func TestBindSingleContract(t *testing.T) {
	cat := discovery.NewCatalog()
	addGreeterContract(cat, scope+"/gen")
	cat.Add(scope, discovery.Type[*politeGreeter]("PoliteGreeter", newPoliteGreeter))

	bindings, err := newBinder(cat).Bind(scope)
	require.NoError(t, err)
	require.Len(t, bindings, 1)

	b := bindings[0]
	assert.Equal(t, "example.com/svc/gen.Greeter.Processor", b.Wrapper.QualifiedName())
	assert.Equal(t, "example.com/svc/gen.Greeter.Iface", b.Handler.QualifiedName())
	assert.Equal(t, "example.com/svc.PoliteGreeter", b.Implementation.QualifiedName())

	p, ok := b.Processor.(*greeterProcessor)
	require.True(t, ok)
	assert.Equal(t, "good day ann", p.handler.Greet("ann"))
}

func TestBindExcludesNestedStubs(t *testing.T) {
	cat := discovery.NewCatalog()
	contract := addGreeterContract(cat, scope+"/gen")
	// A stub nested two levels deep is still part of the contract.
	stub, ok := contract.Child("Stub")
	require.True(t, ok)
	stub.Nest(discovery.Type[*greeterStub]("Inner", newGreeterStub))
	cat.Add(scope, discovery.Type[*politeGreeter]("PoliteGreeter", newPoliteGreeter))

	bindings, err := newBinder(cat).Bind(scope)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, "PoliteGreeter", bindings[0].Implementation.Name())
}

func TestBindNoCandidates(t *testing.T) {
	tests := []struct {
		name  string
		build func(cat *discovery.Catalog)
	}{
		{
			name:  "empty scope",
			build: func(*discovery.Catalog) {},
		},
		{
			name: "contract without implementation",
			build: func(cat *discovery.Catalog) {
				addGreeterContract(cat, scope+"/gen")
			},
		},
		{
			name: "implementation outside scope",
			build: func(cat *discovery.Catalog) {
				addGreeterContract(cat, scope+"/gen")
				cat.Add("example.com/other", discovery.Type[*politeGreeter]("PoliteGreeter", newPoliteGreeter))
			},
		},
		{
			name: "processor without contract",
			build: func(cat *discovery.Catalog) {
				cat.Add(scope, discovery.Type[*greeterProcessor]("Loose", newGreeterProcessor))
				cat.Add(scope, discovery.Type[*politeGreeter]("PoliteGreeter", newPoliteGreeter))
			},
		},
		{
			name: "contract without handler interface",
			build: func(cat *discovery.Catalog) {
				contract := cat.Add(scope+"/gen", discovery.Namespace("Greeter"))
				contract.Nest(discovery.Type[*greeterProcessor]("Processor", newGreeterProcessor))
				cat.Add(scope, discovery.Type[*politeGreeter]("PoliteGreeter", newPoliteGreeter))
			},
		},
		{
			name: "processor without handler constructor",
			build: func(cat *discovery.Catalog) {
				contract := cat.Add(scope+"/gen", discovery.Namespace("Greeter"))
				contract.Nest(discovery.Type[greeterIface]("Iface"))
				contract.Nest(discovery.Type[*greeterProcessor]("Processor"))
				cat.Add(scope, discovery.Type[*politeGreeter]("PoliteGreeter", newPoliteGreeter))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := discovery.NewCatalog()
			tt.build(cat)

			bindings, err := newBinder(cat).Bind(scope)
			assert.ErrorIs(t, err, ErrNoCandidates)
			assert.Empty(t, bindings)
		})
	}
}

func TestBindAmbiguousWithinContract(t *testing.T) {
	for _, mode := range []Ambiguity{WholeScope, PerContract} {
		t.Run(mode.String(), func(t *testing.T) {
			cat := discovery.NewCatalog()
			addGreeterContract(cat, scope+"/gen")
			cat.Add(scope, discovery.Type[*politeGreeter]("PoliteGreeter", newPoliteGreeter))
			cat.Add(scope+"/alt", discovery.Type[*rudeGreeter]("RudeGreeter", newRudeGreeter))

			bindings, err := newBinder(cat, WithAmbiguity(mode)).Bind(scope)
			assert.ErrorIs(t, err, ErrAmbiguousBinding)
			assert.Empty(t, bindings)
		})
	}
}

func TestBindAmbiguousAcrossContracts(t *testing.T) {
	cat := discovery.NewCatalog()
	addGreeterContract(cat, scope+"/gen")
	addCounterContract(cat, scope+"/gen")
	cat.Add(scope, discovery.Type[*politeGreeter]("PoliteGreeter", newPoliteGreeter))
	cat.Add(scope, discovery.Type[*counter]("Counter", newCounter))

	bindings, err := newBinder(cat).Bind(scope)
	assert.ErrorIs(t, err, ErrAmbiguousBinding, "whole-scope mode rejects a second implementer of an unrelated contract")
	assert.Empty(t, bindings)

	bindings, err = newBinder(cat, WithAmbiguity(PerContract)).Bind(scope)
	require.NoError(t, err)
	require.Len(t, bindings, 2)
	assert.Equal(t, "PoliteGreeter", bindings[0].Implementation.Name())
	assert.Equal(t, "Counter", bindings[1].Implementation.Name())
	assert.Equal(t, 7, bindings[1].Processor.(*counterProcessor).handler.Count())
}

func TestBindNoDefaultConstructor(t *testing.T) {
	cat := discovery.NewCatalog()
	addGreeterContract(cat, scope+"/gen")
	cat.Add(scope, discovery.Type[*rudeGreeter]("RudeGreeter", newRudeGreeterWith))

	bindings, err := newBinder(cat).Bind(scope)
	assert.ErrorIs(t, err, discovery.ErrNoDefaultConstructor)
	assert.Empty(t, bindings)
}

func TestBindInstantiationFailure(t *testing.T) {
	cat := discovery.NewCatalog()
	addGreeterContract(cat, scope+"/gen")
	cat.Add(scope, discovery.Type[*politeGreeter]("PoliteGreeter", newFailingGreeter))

	bindings, err := newBinder(cat).Bind(scope)
	assert.ErrorIs(t, err, discovery.ErrInstantiation)
	assert.Contains(t, err.Error(), "no database")
	assert.Empty(t, bindings)
}

func TestBindCustomStrategy(t *testing.T) {
	cat := discovery.NewCatalog()
	contract := cat.Add(scope+"/gen", discovery.Namespace("Greeter"))
	contract.Nest(discovery.Type[greeterIface]("Handler"))
	contract.Nest(discovery.Type[*greeterProcessor]("Processor", newGreeterProcessor))
	cat.Add(scope, discovery.Type[*politeGreeter]("PoliteGreeter", newPoliteGreeter))

	_, err := newBinder(cat).Bind(scope)
	assert.ErrorIs(t, err, ErrNoCandidates)

	bindings, err := newBinder(cat, WithStrategy(NestedName("Handler"))).Bind(scope)
	require.NoError(t, err)
	assert.Len(t, bindings, 1)

	calls := 0
	strategy := StrategyFunc(func(c *discovery.Decl) (*discovery.Decl, bool) {
		calls++
		return c.Child("Handler")
	})
	bindings, err = newBinder(cat, WithStrategy(strategy)).Bind(scope)
	require.NoError(t, err)
	assert.Len(t, bindings, 1)
	assert.Equal(t, 1, calls)
}

func TestNestedNameRejectsConcreteTypes(t *testing.T) {
	cat := discovery.NewCatalog()
	contract := addGreeterContract(cat, scope)

	_, ok := NestedName("Stub").HandlerInterface(contract)
	assert.False(t, ok)
	_, ok = NestedName("Missing").HandlerInterface(contract)
	assert.False(t, ok)
	d, ok := NestedName("Iface").HandlerInterface(contract)
	require.True(t, ok)
	assert.Equal(t, "Iface", d.Name())
}

func TestBindEmptyScope(t *testing.T) {
	_, err := newBinder(discovery.NewCatalog()).Bind("")
	assert.ErrorIs(t, err, discovery.ErrEmptyScope)
}

type bindRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *bindRecorder) ObserveBind(_ string, outcome string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestBindMetrics(t *testing.T) {
	rec := &bindRecorder{}

	ok := discovery.NewCatalog()
	addGreeterContract(ok, scope)
	ok.Add(scope, discovery.Type[*politeGreeter]("PoliteGreeter", newPoliteGreeter))
	_, _ = newBinder(ok, WithMetrics(rec)).Bind(scope)

	_, _ = newBinder(discovery.NewCatalog(), WithMetrics(rec)).Bind(scope)

	ambiguous := discovery.NewCatalog()
	addGreeterContract(ambiguous, scope)
	ambiguous.Add(scope, discovery.Type[*politeGreeter]("A", newPoliteGreeter))
	ambiguous.Add(scope, discovery.Type[*politeGreeter]("B", newPoliteGreeter))
	_, _ = newBinder(ambiguous, WithMetrics(rec)).Bind(scope)

	noDefault := discovery.NewCatalog()
	addGreeterContract(noDefault, scope)
	noDefault.Add(scope, discovery.Type[*rudeGreeter]("Rude", newRudeGreeterWith))
	_, _ = newBinder(noDefault, WithMetrics(rec)).Bind(scope)

	assert.Equal(t, []string{OutcomeBound, OutcomeNoCandidates, OutcomeAmbiguous, OutcomeNoDefault}, rec.outcomes)
}
