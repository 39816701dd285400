package discovery

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/marmos91/rpcboot/internal/logger"
)

// CapabilityOf returns the reflect.Type of the interface type T.
func CapabilityOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Discover returns the concrete declarations in scope that implement
// capability, in declaration order. An empty result is not an error.
func Discover(u Universe, scope string, capability reflect.Type) ([]*Decl, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, ErrEmptyScope
	}
	if capability == nil || capability.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCapability, capability)
	}

	found := u.FindImplementors(scope, capability)
	logger.Debug("Discovered implementors",
		logger.Scope(scope),
		logger.KeyCapability, capability.String(),
		logger.KeyCandidates, len(found))
	return found, nil
}

// Instantiate builds an instance of d through its zero-argument constructor.
func Instantiate(d *Decl) (any, error) {
	if d.Abstract() {
		return nil, fmt.Errorf("%w: %s is abstract", ErrInstantiation, d)
	}
	ctor, ok := d.DefaultConstructor()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDefaultConstructor, d)
	}
	instance, err := ctor.Call()
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", d, err)
	}
	return instance, nil
}

// InstantiateAll instantiates every declaration in order. The whole batch
// is abandoned on the first declaration without a zero-argument
// constructor or whose constructor fails.
func InstantiateAll[T any](decls []*Decl) ([]T, error) {
	out := make([]T, 0, len(decls))
	for _, d := range decls {
		instance, err := Instantiate(d)
		if err != nil {
			return nil, err
		}
		v, ok := instance.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %s built %T, not %s", ErrInstantiation, d, instance, reflect.TypeOf((*T)(nil)).Elem())
		}
		out = append(out, v)
	}
	return out, nil
}
