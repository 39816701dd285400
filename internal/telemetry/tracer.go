package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for bootstrap spans.
const (
	AttrApp     = "rpcboot.app"
	AttrBootID  = "rpcboot.boot_id"
	AttrScope   = "rpcboot.scope"
	AttrUnit    = "rpcboot.unit"
	AttrState   = "rpcboot.state"
	AttrService = "rpc.service"
	AttrPort    = "net.host.port"
)

// App returns an attribute for the application name
func App(name string) attribute.KeyValue {
	return attribute.String(AttrApp, name)
}

// BootID returns an attribute for the boot identifier
func BootID(id string) attribute.KeyValue {
	return attribute.String(AttrBootID, id)
}

// Scope returns an attribute for a discovery scope
func Scope(scope string) attribute.KeyValue {
	return attribute.String(AttrScope, scope)
}

// Unit returns an attribute for a lifecycle unit name
func Unit(name string) attribute.KeyValue {
	return attribute.String(AttrUnit, name)
}

// State returns an attribute for an orchestrator state
func State(state string) attribute.KeyValue {
	return attribute.String(AttrState, state)
}

// Service returns an attribute for a fully qualified RPC service name
func Service(name string) attribute.KeyValue {
	return attribute.String(AttrService, name)
}

// Port returns an attribute for a listening port
func Port(port int) attribute.KeyValue {
	return attribute.Int(AttrPort, port)
}

// StartBootSpan starts the span covering one application start.
func StartBootSpan(ctx context.Context, app, bootID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{App(app), BootID(bootID)}, attrs...)
	return StartSpan(ctx, "rpcboot.start", trace.WithAttributes(all...))
}

// StartPhaseSpan starts a child span for one orchestrator phase such as
// "configure_support" or "configure_application".
func StartPhaseSpan(ctx context.Context, phase string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "rpcboot."+phase, trace.WithAttributes(attrs...))
}
