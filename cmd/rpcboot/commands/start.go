package commands

import (
	"fmt"

	"github.com/marmos91/rpcboot/pkg/app"
	"github.com/marmos91/rpcboot/pkg/binder"
	"github.com/spf13/cobra"
)

var (
	perContract bool
	reflection  bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the greeter application",
	Long: `Start the bundled greeter application in the foreground.

The configuration is read from --config, or from the default location at
$XDG_CONFIG_HOME/rpcboot/config.yaml. The server listens on the port set by
<app>.thrift.listenPort, which is mandatory.

The application stops on SIGINT or SIGTERM, stopping every unit in reverse
start order.

Examples:
  # Write a sample configuration, then start
  rpcboot config init
  rpcboot start

  # Start with a custom config file
  rpcboot start --config /etc/rpcboot/config.yaml

  # Override the port from the environment
  GREETER_THRIFT_LISTENPORT=9000 rpcboot start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&perContract, "per-contract", false, "Only treat two implementations of the same contract as ambiguous")
	startCmd.Flags().BoolVar(&reflection, "reflection", false, "Register the gRPC reflection service")
}

func runStart(cmd *cobra.Command, args []string) error {
	opts := []app.Option{
		app.WithConfigFile(GetConfigFile(cmd)),
		app.WithVersion(Version),
		app.WithReflection(reflection),
	}
	if perContract {
		opts = append(opts, app.WithAmbiguity(binder.PerContract))
	}

	orchestrator, err := app.New(sampleApplication(GetAppName(cmd)), opts...)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "rpcboot %s - starting %s\n", Version, orchestrator.Name())
	return orchestrator.Run(cmd.Context())
}
