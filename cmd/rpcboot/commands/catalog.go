package commands

import (
	"github.com/marmos91/rpcboot/internal/greeter"
	"github.com/marmos91/rpcboot/internal/greeter/polite"
	"github.com/marmos91/rpcboot/pkg/app"
	"github.com/marmos91/rpcboot/pkg/discovery"
)

const sampleApp = "greeter"

// sampleCatalog declares the bundled greeter contract and its polite
// implementation.
func sampleCatalog() *discovery.Catalog {
	cat := discovery.NewCatalog()
	greeter.Declare(cat)
	polite.Declare(cat)
	return cat
}

// sampleApplication is the greeter application under name. Its scope covers
// both the contract and the implementation package.
func sampleApplication(name string) app.Application {
	return app.Define(name, greeter.Scope, sampleCatalog())
}
