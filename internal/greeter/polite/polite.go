// Package polite is the sample Greeter implementation served by greeterd.
package polite

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/marmos91/rpcboot/internal/greeter"
	"github.com/marmos91/rpcboot/internal/logger"
	"github.com/marmos91/rpcboot/pkg/discovery"
)

// Scope is the import path the implementation is declared under.
const Scope = greeter.Scope + "/polite"

const maxNameLength = 256

// greeted counts greetings served by every Greeter of the process.
var greeted atomic.Int64

// Greeter greets callers by name.
type Greeter struct{}

// New creates a Greeter.
func New() *Greeter {
	return &Greeter{}
}

// Greet implements greeter.Iface.
func (g *Greeter) Greet(ctx context.Context, name *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	who := strings.TrimSpace(name.GetValue())
	if len(who) > maxNameLength {
		return nil, status.Errorf(codes.InvalidArgument, "name longer than %d bytes", maxNameLength)
	}
	if who == "" {
		who = "stranger"
	}

	greeted.Add(1)
	logger.DebugCtx(ctx, "Greeting", "name", who)
	return wrapperspb.String(fmt.Sprintf("Hello, %s!", who)), nil
}

// Reporter is a lifecycle unit that logs how many greetings were served
// when the application stops.
type Reporter struct {
	running atomic.Bool
	base    int64
}

// NewReporter creates a Reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Name implements lifecycle.Named.
func (r *Reporter) Name() string {
	return "greeting-reporter"
}

// Start implements lifecycle.Unit.
func (r *Reporter) Start(_ context.Context) error {
	if r.running.Swap(true) {
		return nil
	}
	r.base = greeted.Load()
	return nil
}

// Stop implements lifecycle.Unit.
func (r *Reporter) Stop(_ context.Context) error {
	if !r.running.Swap(false) {
		return nil
	}
	logger.Info("Greetings served", "count", r.Served())
	return nil
}

// IsRunning implements lifecycle.Unit.
func (r *Reporter) IsRunning() bool {
	return r.running.Load()
}

// Served returns the greetings served since Start.
func (r *Reporter) Served() int64 {
	return greeted.Load() - r.base
}

// Declare adds the implementation to cat.
func Declare(cat *discovery.Catalog) {
	cat.Add(Scope, discovery.Type[*Greeter]("Greeter", New))
	cat.Add(Scope, discovery.Type[*Reporter]("Reporter", NewReporter))
}
