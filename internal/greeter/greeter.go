// Package greeter is the Greeter service contract: the handler interface an
// application implements, the processor wrapper served over gRPC and the
// catalog declarations the binder works from.
package greeter

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/marmos91/rpcboot/pkg/discovery"
	"github.com/marmos91/rpcboot/pkg/rpc"
)

// Scope is the import path the contract is declared under.
const Scope = "github.com/marmos91/rpcboot/internal/greeter"

const (
	ServiceName = "rpcboot.greeter.Greeter"
	GreetMethod = "/" + ServiceName + "/Greet"
)

// Iface is the handler interface of the Greeter contract.
type Iface interface {
	Greet(ctx context.Context, name *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

// ServiceDesc describes the Greeter service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Iface)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Greet",
		Handler:    greetHandler,
	}},
	Metadata: "greeter.proto",
}

func greetHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Iface).Greet(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GreetMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(Iface).Greet(ctx, req.(*wrapperspb.StringValue))
	})
}

// Processor serves an Iface implementation.
type Processor struct {
	rpc.BaseProcessor
}

// NewProcessor wraps handler.
func NewProcessor(handler Iface) *Processor {
	return &Processor{rpc.NewBaseProcessor(&ServiceDesc, handler)}
}

// Unimplemented answers every call with codes.Unimplemented. It is nested in
// the contract, so the binder never picks it as an implementation.
type Unimplemented struct{}

// NewUnimplemented creates the stub.
func NewUnimplemented() *Unimplemented {
	return &Unimplemented{}
}

// Greet implements Iface.
func (Unimplemented) Greet(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Greet not implemented")
}

// Declare adds the contract to cat and returns its enclosing declaration.
func Declare(cat *discovery.Catalog) *discovery.Decl {
	contract := cat.Add(Scope, discovery.Namespace("Greeter"))
	contract.Nest(discovery.Type[Iface]("Iface"))
	contract.Nest(discovery.Type[*Processor]("Processor", NewProcessor))
	contract.Nest(discovery.Type[*Unimplemented]("Unimplemented", NewUnimplemented))
	contract.Nest(discovery.Type[*Client]("Client", NewClient))
	return contract
}
