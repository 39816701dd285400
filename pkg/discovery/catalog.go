package discovery

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Universe is the set of declarations discovery searches.
type Universe interface {
	// FindImplementors returns every concrete declaration in scope whose
	// type implements capability, in declaration order.
	FindImplementors(scope string, capability reflect.Type) []*Decl

	// Enclosing returns the declaration d is nested in, or nil.
	Enclosing(d *Decl) *Decl

	// Nested returns the declarations directly nested in d.
	Nested(d *Decl) []*Decl
}

// Catalog is the explicit, compile-time list of declarations an
// application provides. Builders panic on programmer errors (a constructor
// with the wrong signature, a duplicate name) since a catalog is static.
type Catalog struct {
	mu    sync.RWMutex
	decls []*Decl
}

var _ Universe = (*Catalog)(nil)

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Add declares spec at the top level of scope.
func (c *Catalog) Add(scope string, spec Spec) *Decl {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		panic(fmt.Sprintf("discovery: %q declared without a scope", spec.name))
	}
	for _, d := range c.Decls() {
		if d.enclosing == nil && d.scope == scope && d.name == spec.name {
			panic(fmt.Sprintf("discovery: %s already declares %q", scope, spec.name))
		}
	}
	return c.newDecl(scope, spec)
}

// Merge adds every top-level declaration of other, with its nested
// declarations, to c. A name both catalogs declare in the same scope panics.
func (c *Catalog) Merge(other *Catalog) *Catalog {
	for _, d := range other.Decls() {
		if d.enclosing == nil {
			c.adopt(d, nil)
		}
	}
	return c
}

func (c *Catalog) adopt(src, enclosing *Decl) {
	spec := Spec{name: src.name, typ: src.typ}
	for _, ctor := range src.ctors {
		spec.ctors = append(spec.ctors, ctor.fn.Interface())
	}

	var d *Decl
	if enclosing == nil {
		d = c.Add(src.scope, spec)
	} else {
		d = enclosing.Nest(spec)
	}
	for _, n := range src.nested {
		c.adopt(n, d)
	}
}

func (c *Catalog) newDecl(scope string, spec Spec) *Decl {
	if spec.name == "" {
		panic("discovery: declaration without a name")
	}
	if spec.typ == nil && len(spec.ctors) > 0 {
		panic(fmt.Sprintf("discovery: namespace %q cannot have constructors", spec.name))
	}

	d := &Decl{catalog: c, name: spec.name, scope: scope, typ: spec.typ}
	for _, fn := range spec.ctors {
		d.ctors = append(d.ctors, newConstructor(spec.name, spec.typ, fn))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.decls = append(c.decls, d)
	return d
}

// Decls returns every declaration, nested ones included, in declaration order.
func (c *Catalog) Decls() []*Decl {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Decl(nil), c.decls...)
}

// Lookup finds a declaration by its qualified name.
func (c *Catalog) Lookup(qualified string) (*Decl, bool) {
	for _, d := range c.Decls() {
		if d.QualifiedName() == qualified {
			return d, true
		}
	}
	return nil, false
}

// FindImplementors implements Universe.
func (c *Catalog) FindImplementors(scope string, capability reflect.Type) []*Decl {
	var found []*Decl
	for _, d := range c.Decls() {
		if InScope(d.scope, scope) && d.Implements(capability) {
			found = append(found, d)
		}
	}
	return found
}

// Enclosing implements Universe.
func (c *Catalog) Enclosing(d *Decl) *Decl {
	return d.Enclosing()
}

// Nested implements Universe.
func (c *Catalog) Nested(d *Decl) []*Decl {
	return d.Nested()
}

// InScope reports whether an import path lies within scope: it is the
// scope itself or one of its sub-packages.
func InScope(path, scope string) bool {
	return path == scope || strings.HasPrefix(path, scope+"/")
}
