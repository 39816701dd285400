// Package rpc serves bound processors over gRPC.
//
// A Processor is the generated wrapper of a service contract: it carries the
// service description and the handler implementation it was built around.
// A Server is the lifecycle unit serving one processor on the port taken
// from "<name>.thrift.listenPort".
package rpc

import (
	"google.golang.org/grpc"
)

// Processor is implemented by every contract wrapper.
type Processor interface {
	// ServiceDesc describes the service and its method handlers.
	ServiceDesc() *grpc.ServiceDesc

	// Handler returns the implementation the wrapper delegates to.
	Handler() any
}

// BaseProcessor is embedded by generated wrappers.
type BaseProcessor struct {
	desc    *grpc.ServiceDesc
	handler any
}

// NewBaseProcessor pairs desc with handler.
func NewBaseProcessor(desc *grpc.ServiceDesc, handler any) BaseProcessor {
	return BaseProcessor{desc: desc, handler: handler}
}

// ServiceDesc implements Processor.
func (p BaseProcessor) ServiceDesc() *grpc.ServiceDesc {
	return p.desc
}

// Handler implements Processor.
func (p BaseProcessor) Handler() any {
	return p.handler
}

// ServiceName returns the fully qualified service name of p.
func ServiceName(p Processor) string {
	if d := p.ServiceDesc(); d != nil {
		return d.ServiceName
	}
	return ""
}
