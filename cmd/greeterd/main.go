// Command greeterd serves the polite greeter, wired by hand instead of by
// auto-configuration.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/rpcboot/internal/greeter"
	"github.com/marmos91/rpcboot/internal/greeter/polite"
	"github.com/marmos91/rpcboot/pkg/app"
	"github.com/marmos91/rpcboot/pkg/discovery"
	"github.com/spf13/cobra"
)

// Build-time variables injected via ldflags
var version = "dev"

var configFile string

var rootCmd = &cobra.Command{
	Use:           "greeterd",
	Short:         "Serve the polite greeter over gRPC",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		orchestrator, err := app.New(application(),
			app.WithConfigFile(configFile),
			app.WithVersion(version),
		)
		if err != nil {
			return err
		}
		return orchestrator.Run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Config file (default: $XDG_CONFIG_HOME/rpcboot/config.yaml)")
}

// application appends the lifecycle units of the polite package and
// registers the greeter explicitly under the application name.
func application() app.Application {
	cat := discovery.NewCatalog()
	greeter.Declare(cat)
	polite.Declare(cat)

	return app.ConfigureFunc(app.Define("greeter", polite.Scope, cat),
		func(ctx context.Context, setup *app.Setup) error {
			if err := setup.LifeCycles().AutoConfig(ctx); err != nil {
				return err
			}
			_, err := setup.RPC().Register(greeter.NewProcessor(polite.New()))
			return err
		})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
