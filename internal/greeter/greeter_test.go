package greeter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/marmos91/rpcboot/internal/greeter"
	"github.com/marmos91/rpcboot/internal/greeter/polite"
	"github.com/marmos91/rpcboot/pkg/binder"
	"github.com/marmos91/rpcboot/pkg/config"
	"github.com/marmos91/rpcboot/pkg/discovery"
	"github.com/marmos91/rpcboot/pkg/rpc"
)

func catalog() *discovery.Catalog {
	cat := discovery.NewCatalog()
	greeter.Declare(cat)
	polite.Declare(cat)
	return cat
}

func TestDeclare(t *testing.T) {
	cat := discovery.NewCatalog()
	contract := greeter.Declare(cat)

	assert.Equal(t, greeter.Scope+".Greeter", contract.QualifiedName())
	for _, name := range []string{"Iface", "Processor", "Unimplemented", "Client"} {
		_, ok := contract.Child(name)
		assert.True(t, ok, name)
	}
}

func TestBinderSkipsNestedStub(t *testing.T) {
	bindings, err := binder.New(catalog(), discovery.CapabilityOf[rpc.Processor]()).Bind(greeter.Scope)
	require.NoError(t, err)
	require.Len(t, bindings, 1)

	assert.Equal(t, polite.Scope+".Greeter", bindings[0].Implementation.QualifiedName())
	p, ok := bindings[0].Processor.(*greeter.Processor)
	require.True(t, ok)
	assert.IsType(t, &polite.Greeter{}, p.Handler())
}

func TestBinderWithoutImplementation(t *testing.T) {
	cat := discovery.NewCatalog()
	greeter.Declare(cat)

	_, err := binder.New(cat, discovery.CapabilityOf[rpc.Processor]()).Bind(greeter.Scope)
	assert.ErrorIs(t, err, binder.ErrNoCandidates)
}

func serve(t *testing.T, handler greeter.Iface) *greeter.Client {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	store := config.NewStore("greeter")
	store.Set("greeter.thrift.listenPort", 0)

	server := rpc.NewServer(greeter.NewProcessor(handler), store, "greeter")
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { _ = server.Stop(context.Background()) })

	conn, err := grpc.NewClient(server.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return greeter.NewClient(conn)
}

func TestClientRoundTrip(t *testing.T) {
	client := serve(t, polite.New())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := client.Greet(ctx, "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", got)
}

func TestUnimplemented(t *testing.T) {
	client := serve(t, greeter.NewUnimplemented())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Greet(ctx, "Ada")
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
