// Package app boots an application: it starts configuration and logging,
// lets the application register or auto-discover its lifecycle units and
// RPC servers, and runs everything as one lifecycle until shutdown.
//
//	o, err := app.New(app.Define("greeter", greeter.Scope, catalog))
//	...
//	err = o.Run(ctx)
//
// Applications implementing Configurer wire themselves; the others are
// auto-configured from their scope.
package app

import (
	"context"

	"github.com/marmos91/rpcboot/pkg/discovery"
)

// Application describes what is being booted.
type Application interface {
	// Name identifies the application. It is the configuration namespace
	// and the name of the auto-configured RPC server.
	Name() string

	// Scope is the import path discovery runs under.
	Scope() string

	// Catalog lists every declaration the application provides.
	Catalog() *discovery.Catalog
}

// Configurer is implemented by applications that register their units
// manually. Setup.AutoConfig remains available to them.
type Configurer interface {
	Configure(ctx context.Context, setup *Setup) error
}

// Define returns an Application with fixed values.
func Define(name, scope string, catalog *discovery.Catalog) Application {
	return defined{name: name, scope: scope, catalog: catalog}
}

type defined struct {
	name    string
	scope   string
	catalog *discovery.Catalog
}

func (d defined) Name() string {
	return d.name
}

func (d defined) Scope() string {
	return d.scope
}

func (d defined) Catalog() *discovery.Catalog {
	return d.catalog
}

// ConfigureFunc turns an Application into a Configurer.
func ConfigureFunc(a Application, fn func(ctx context.Context, setup *Setup) error) Application {
	return configured{Application: a, fn: fn}
}

type configured struct {
	Application
	fn func(ctx context.Context, setup *Setup) error
}

func (c configured) Configure(ctx context.Context, setup *Setup) error {
	return c.fn(ctx, setup)
}
