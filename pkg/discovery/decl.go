package discovery

import (
	"fmt"
	"reflect"
	"strings"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Spec describes a declaration before it is added to a Catalog.
type Spec struct {
	name  string
	typ   reflect.Type
	ctors []any
}

// Type declares a Go type T under name. Constructors are funcs returning T
// (or T and an error); a func() T is the zero-argument constructor used by
// Instantiate, single-argument funcs are wrapper constructors.
func Type[T any](name string, constructors ...any) Spec {
	return Spec{name: name, typ: reflect.TypeOf((*T)(nil)).Elem(), ctors: constructors}
}

// Namespace declares a pure enclosing declaration with no Go type of its
// own, such as a generated service contract grouping its handler interface,
// processor and stubs.
func Namespace(name string) Spec {
	return Spec{name: name}
}

// Constructor is a validated constructor function of a declaration.
type Constructor struct {
	fn reflect.Value
}

// Arity returns the number of arguments the constructor takes.
func (c Constructor) Arity() int {
	return c.fn.Type().NumIn()
}

// Call invokes the constructor. A returned error or a panic is reported as
// ErrInstantiation.
func (c Constructor) Call(args ...any) (instance any, err error) {
	if len(args) != c.Arity() {
		return nil, fmt.Errorf("%w: constructor takes %d arguments, got %d", ErrInstantiation, c.Arity(), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		want := c.fn.Type().In(i)
		if arg == nil {
			in[i] = reflect.Zero(want)
			continue
		}
		v := reflect.ValueOf(arg)
		if !v.Type().AssignableTo(want) {
			return nil, fmt.Errorf("%w: argument %d is %s, want %s", ErrInstantiation, i, v.Type(), want)
		}
		in[i] = v
	}

	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = fmt.Errorf("%w: constructor panicked: %v", ErrInstantiation, r)
		}
	}()

	out := c.fn.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, fmt.Errorf("%w: %w", ErrInstantiation, out[1].Interface().(error))
	}
	return out[0].Interface(), nil
}

// Decl is a declaration registered in a Catalog.
type Decl struct {
	catalog   *Catalog
	name      string
	scope     string
	typ       reflect.Type
	ctors     []Constructor
	enclosing *Decl
	nested    []*Decl
}

// Name returns the simple name of the declaration.
func (d *Decl) Name() string { return d.name }

// Scope returns the import path the declaration lives in.
func (d *Decl) Scope() string { return d.scope }

// Type returns the Go type of the declaration, or nil for a namespace.
func (d *Decl) Type() reflect.Type { return d.typ }

// Abstract reports whether the declaration cannot be instantiated as a
// component: namespaces and interface types are abstract.
func (d *Decl) Abstract() bool {
	return d.typ == nil || d.typ.Kind() == reflect.Interface
}

// Enclosing returns the declaration this one is nested in, or nil.
func (d *Decl) Enclosing() *Decl { return d.enclosing }

// Nested returns the declarations directly nested in this one.
func (d *Decl) Nested() []*Decl {
	return append([]*Decl(nil), d.nested...)
}

// Child returns the directly nested declaration called name.
func (d *Decl) Child(name string) (*Decl, bool) {
	for _, n := range d.nested {
		if n.name == name {
			return n, true
		}
	}
	return nil, false
}

// Within reports whether d is nested, at any depth, inside ancestor.
func (d *Decl) Within(ancestor *Decl) bool {
	for e := d.enclosing; e != nil; e = e.enclosing {
		if e == ancestor {
			return true
		}
	}
	return false
}

// QualifiedName returns the scope followed by the chain of enclosing names,
// e.g. "example.com/app/greeter.Greeter.Iface".
func (d *Decl) QualifiedName() string {
	names := []string{d.name}
	for e := d.enclosing; e != nil; e = e.enclosing {
		names = append([]string{e.name}, names...)
	}
	return d.scope + "." + strings.Join(names, ".")
}

// String implements fmt.Stringer.
func (d *Decl) String() string {
	return d.QualifiedName()
}

// DefaultConstructor returns the zero-argument constructor, if declared.
func (d *Decl) DefaultConstructor() (Constructor, bool) {
	for _, c := range d.ctors {
		if c.Arity() == 0 {
			return c, true
		}
	}
	return Constructor{}, false
}

// ConstructorFor returns the constructor taking exactly one argument of
// type arg, if declared.
func (d *Decl) ConstructorFor(arg reflect.Type) (Constructor, bool) {
	for _, c := range d.ctors {
		t := c.fn.Type()
		if t.NumIn() == 1 && !t.IsVariadic() && t.In(0) == arg {
			return c, true
		}
	}
	return Constructor{}, false
}

// Implements reports whether d is concrete and its type implements capability.
func (d *Decl) Implements(capability reflect.Type) bool {
	if d.Abstract() || capability == nil || capability.Kind() != reflect.Interface {
		return false
	}
	return d.typ.Implements(capability)
}

// Nest declares spec inside d. The nested declaration shares d's scope.
// It panics on an invalid spec or a duplicate name, like Catalog.Add.
func (d *Decl) Nest(spec Spec) *Decl {
	if _, dup := d.Child(spec.name); dup {
		panic(fmt.Sprintf("discovery: %s already declares %q", d.QualifiedName(), spec.name))
	}
	child := d.catalog.newDecl(d.scope, spec)
	child.enclosing = d
	d.nested = append(d.nested, child)
	return child
}

// newConstructor validates fn against the declared type.
func newConstructor(owner string, typ reflect.Type, fn any) Constructor {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		panic(fmt.Sprintf("discovery: constructor of %s is %T, not a func", owner, fn))
	}

	t := v.Type()
	switch {
	case t.NumOut() == 1:
	case t.NumOut() == 2 && t.Out(1) == errorType:
	default:
		panic(fmt.Sprintf("discovery: constructor %s of %s must return the type and an optional error", t, owner))
	}
	if !t.Out(0).AssignableTo(typ) {
		panic(fmt.Sprintf("discovery: constructor %s of %s returns %s, not %s", t, owner, t.Out(0), typ))
	}
	return Constructor{fn: v}
}
