package discovery

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Greeter interface {
	Greet(name string) string
}

type english struct{}

func (english) Greet(name string) string { return "hello " + name }

func newEnglish() *english { return &english{} }

type french struct{ prefix string }

func (f *french) Greet(name string) string { return f.prefix + name }

func newFrench(prefix string) *french { return &french{prefix: prefix} }

type broken struct{}

func (broken) Greet(string) string { return "" }

func newBroken() (*broken, error) { return nil, errors.New("disk on fire") }

func newPanicking() *broken { panic("boom") }

type notAGreeter struct{}

func newNotAGreeter() *notAGreeter { return &notAGreeter{} }

func testCatalog() *Catalog {
	cat := NewCatalog()
	cat.Add("example.com/app", Type[*english]("english", newEnglish))
	cat.Add("example.com/app/sub", Type[*french]("french", newFrench))
	cat.Add("example.com/application", Type[*english]("outside", newEnglish))
	cat.Add("example.com/app", Type[Greeter]("Greeter"))
	cat.Add("example.com/app", Type[*notAGreeter]("plain", newNotAGreeter))
	return cat
}

func TestDiscoverScopeAndCapability(t *testing.T) {
	found, err := Discover(testCatalog(), "example.com/app", CapabilityOf[Greeter]())
	require.NoError(t, err)

	names := make([]string, 0, len(found))
	for _, d := range found {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{"english", "french"}, names, "sub-packages match, sibling prefixes and interfaces do not")
}

func TestDiscoverEmptyResult(t *testing.T) {
	found, err := Discover(testCatalog(), "example.com/other", CapabilityOf[Greeter]())
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDiscoverRejectsBadInput(t *testing.T) {
	_, err := Discover(testCatalog(), "  ", CapabilityOf[Greeter]())
	assert.ErrorIs(t, err, ErrEmptyScope)

	_, err = Discover(testCatalog(), "example.com/app", CapabilityOf[*english]())
	assert.ErrorIs(t, err, ErrInvalidCapability)

	_, err = Discover(testCatalog(), "example.com/app", nil)
	assert.ErrorIs(t, err, ErrInvalidCapability)
}

func TestInstantiate(t *testing.T) {
	cat := testCatalog()

	d, ok := cat.Lookup("example.com/app.english")
	require.True(t, ok)
	instance, err := Instantiate(d)
	require.NoError(t, err)
	assert.Equal(t, "hello bob", instance.(Greeter).Greet("bob"))

	d, ok = cat.Lookup("example.com/app/sub.french")
	require.True(t, ok)
	_, err = Instantiate(d)
	assert.ErrorIs(t, err, ErrNoDefaultConstructor)

	d, ok = cat.Lookup("example.com/app.Greeter")
	require.True(t, ok)
	_, err = Instantiate(d)
	assert.ErrorIs(t, err, ErrInstantiation)
}

func TestInstantiateConstructorFailures(t *testing.T) {
	cat := NewCatalog()
	failing := cat.Add("example.com/app", Type[*broken]("failing", newBroken))
	panicking := cat.Add("example.com/app", Type[*broken]("panicking", newPanicking))

	_, err := Instantiate(failing)
	assert.ErrorIs(t, err, ErrInstantiation)
	assert.Contains(t, err.Error(), "disk on fire")

	_, err = Instantiate(panicking)
	assert.ErrorIs(t, err, ErrInstantiation)
	assert.Contains(t, err.Error(), "boom")
}

func TestInstantiateAllAbortsBatch(t *testing.T) {
	cat := testCatalog()
	found, err := Discover(cat, "example.com/app", CapabilityOf[Greeter]())
	require.NoError(t, err)

	greeters, err := InstantiateAll[Greeter](found)
	assert.ErrorIs(t, err, ErrNoDefaultConstructor)
	assert.Nil(t, greeters)

	greeters, err = InstantiateAll[Greeter](found[:1])
	require.NoError(t, err)
	assert.Len(t, greeters, 1)
}

func TestNestedDeclarations(t *testing.T) {
	cat := NewCatalog()
	contract := cat.Add("example.com/app/gen", Namespace("Greeter"))
	iface := contract.Nest(Type[Greeter]("Iface"))
	stub := contract.Nest(Type[*english]("Stub", newEnglish))
	deep := stub.Nest(Type[*english]("Deeper", newEnglish))

	assert.Equal(t, "example.com/app/gen.Greeter.Iface", iface.QualifiedName())
	assert.Same(t, contract, cat.Enclosing(iface))
	assert.Nil(t, cat.Enclosing(contract))
	assert.Equal(t, []*Decl{iface, stub}, cat.Nested(contract))
	assert.True(t, deep.Within(contract))
	assert.False(t, contract.Within(deep))

	child, ok := contract.Child("Iface")
	require.True(t, ok)
	assert.Same(t, iface, child)
	_, ok = contract.Child("Missing")
	assert.False(t, ok)

	assert.True(t, contract.Abstract())
	assert.True(t, iface.Abstract())
	assert.False(t, stub.Abstract())
	assert.Equal(t, "example.com/app/gen", deep.Scope())
	assert.Len(t, cat.Decls(), 4)
}

func TestConstructorFor(t *testing.T) {
	cat := NewCatalog()
	d := cat.Add("example.com/app", Type[*french]("french", newFrench))

	ctor, ok := d.ConstructorFor(reflect.TypeOf((*string)(nil)).Elem())
	require.True(t, ok)
	instance, err := ctor.Call("bonjour ")
	require.NoError(t, err)
	assert.Equal(t, "bonjour bob", instance.(Greeter).Greet("bob"))

	_, err = ctor.Call(42)
	assert.ErrorIs(t, err, ErrInstantiation)
	_, err = ctor.Call()
	assert.ErrorIs(t, err, ErrInstantiation)

	_, ok = d.ConstructorFor(reflect.TypeOf((*int)(nil)).Elem())
	assert.False(t, ok)
	_, ok = d.DefaultConstructor()
	assert.False(t, ok)
}

func TestCatalogBuilderPanics(t *testing.T) {
	cat := NewCatalog()

	assert.Panics(t, func() { cat.Add("", Type[*english]("english")) })
	assert.Panics(t, func() { cat.Add("example.com/app", Type[*english]("")) })
	assert.Panics(t, func() { cat.Add("example.com/app", Type[*english]("english", "not a func")) })
	assert.Panics(t, func() { cat.Add("example.com/app", Type[*english]("english", newNotAGreeter)) })
	assert.Panics(t, func() { cat.Add("example.com/app", Namespace("ns")).Nest(Namespace("x")).Nest(Type[*english]("y", func() (*english, int) { return nil, 0 })) })
	assert.Panics(t, func() { cat.Add("example.com/app", Spec{name: "ns", ctors: []any{newEnglish}}) })

	contract := cat.Add("example.com/app", Namespace("Greeter"))
	contract.Nest(Namespace("Iface"))
	assert.Panics(t, func() { contract.Nest(Namespace("Iface")) })

	assert.PanicsWithValue(t, `discovery: example.com/app already declares "Greeter"`, func() {
		cat.Add(" example.com/app ", Type[*english]("Greeter", newEnglish))
	})
	assert.NotPanics(t, func() { cat.Add("example.com/app/v2", Namespace("Greeter")) })
	assert.NotPanics(t, func() { cat.Add("example.com/app", Namespace("Iface")) })
	assert.Panics(t, func() { NewCatalog().Merge(cat).Merge(cat) })
}

func TestCatalogMerge(t *testing.T) {
	a := NewCatalog()
	a.Add("example.com/a", Type[*english]("english", newEnglish))
	b := NewCatalog()
	contract := b.Add("example.com/b", Namespace("Greeter"))
	contract.Nest(Type[Greeter]("Iface"))

	merged := NewCatalog().Merge(a).Merge(b)
	require.Len(t, merged.Decls(), 3)

	iface, ok := merged.Lookup("example.com/b.Greeter.Iface")
	require.True(t, ok)
	require.NotNil(t, iface.Enclosing())
	assert.Equal(t, "Greeter", iface.Enclosing().Name())
	assert.NotSame(t, contract, iface.Enclosing())

	english, ok := merged.Lookup("example.com/a.english")
	require.True(t, ok)
	_, ok = english.DefaultConstructor()
	assert.True(t, ok)
}

func TestInScope(t *testing.T) {
	assert.True(t, InScope("example.com/app", "example.com/app"))
	assert.True(t, InScope("example.com/app/x/y", "example.com/app"))
	assert.False(t, InScope("example.com/application", "example.com/app"))
	assert.False(t, InScope("example.com", "example.com/app"))
}
