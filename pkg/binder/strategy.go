package binder

import (
	"reflect"

	"github.com/marmos91/rpcboot/pkg/discovery"
)

// DefaultHandlerName is the name of the handler interface nested in a
// generated contract.
const DefaultHandlerName = "Iface"

// MatchStrategy locates the handler interface of a contract.
type MatchStrategy interface {
	HandlerInterface(contract *discovery.Decl) (*discovery.Decl, bool)
}

// NestedName matches the interface declared directly inside the contract
// under a fixed name.
type NestedName string

// HandlerInterface implements MatchStrategy.
func (n NestedName) HandlerInterface(contract *discovery.Decl) (*discovery.Decl, bool) {
	d, ok := contract.Child(string(n))
	if !ok || d.Type() == nil || d.Type().Kind() != reflect.Interface {
		return nil, false
	}
	return d, true
}

// StrategyFunc adapts a function to MatchStrategy.
type StrategyFunc func(contract *discovery.Decl) (*discovery.Decl, bool)

// HandlerInterface implements MatchStrategy.
func (f StrategyFunc) HandlerInterface(contract *discovery.Decl) (*discovery.Decl, bool) {
	return f(contract)
}

// Ambiguity selects how far a second implementer invalidates a pass.
type Ambiguity int

const (
	// WholeScope fails the entire pass as soon as a second implementer is
	// accepted anywhere in the scope, even for an unrelated contract.
	WholeScope Ambiguity = iota

	// PerContract only fails when one contract has two implementers.
	PerContract
)

func (a Ambiguity) String() string {
	switch a {
	case WholeScope:
		return "whole-scope"
	case PerContract:
		return "per-contract"
	default:
		return "unknown"
	}
}
