// Package discovery finds the components an application provides.
//
// Applications do not get scanned. Instead they describe themselves with a
// Catalog: every candidate type is declared once, together with its import
// path (the scope it lives in), the declaration that encloses it (if any) and
// its constructors. Discovery then works purely over that list:
//
//	cat := discovery.NewCatalog()
//	greeter := cat.Add("example.com/app/greeter", discovery.Namespace("Greeter"))
//	greeter.Nest(discovery.Type[greeter.Iface]("Iface"))
//	greeter.Nest(discovery.Type[*greeter.Processor]("Processor", greeter.NewProcessor))
//	cat.Add("example.com/app", discovery.Type[*app.Handler]("Handler", app.NewHandler))
//
//	found, err := discovery.Discover(cat, "example.com/app", discovery.CapabilityOf[greeter.Iface]())
//
// Capabilities are interface types. A declaration matches when its Go type
// implements the capability and is concrete (not an interface and not a pure
// namespace). Instantiate builds an instance through the zero-argument
// constructor of a declaration.
package discovery
