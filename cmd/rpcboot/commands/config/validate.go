package config

import (
	"fmt"
	"strconv"

	"github.com/marmos91/rpcboot/internal/cli/output"
	"github.com/marmos91/rpcboot/pkg/config"
	"github.com/marmos91/rpcboot/pkg/rpc"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the configuration of an application.

Checks the application settings and the RPC server section, including the
mandatory <app>.thrift.listenPort.

Examples:
  # Validate the default config
  rpcboot config validate

  # Validate a specific file for another application name
  rpcboot config validate --config /etc/rpcboot/config.yaml --app billing`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	app, path := flags(cmd)

	store, err := openStore(cmd.Context(), app, path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Stop(cmd.Context()) }()

	settings, err := config.LoadSettings(store)
	if err != nil {
		return err
	}
	server, err := rpc.LoadSettings(store, app)
	if err != nil {
		return fmt.Errorf("RPC server section: %w", err)
	}

	p, err := printer(cmd, output.FormatTable)
	if err != nil {
		return err
	}
	p.Printf("Configuration: %s\n", configSource(store))
	p.Success("Validation: OK")
	p.Printf("\n")

	if settings.Metrics.Enabled && settings.Metrics.Port == server.ListenPort {
		p.Warning(fmt.Sprintf("Metrics and RPC server share port %d", server.ListenPort))
	}

	workers := "unbounded"
	if server.WorkerThreads > 0 {
		workers = strconv.Itoa(server.WorkerThreads)
	}
	return output.PrintKeyValues(cmd.OutOrStdout(), [][2]string{
		{"Log level", settings.Logging.Level},
		{"Listen port", strconv.Itoa(server.ListenPort)},
		{"Worker threads", workers},
		{"Server shutdown", server.ShutdownTimeout.String()},
		{"Unit shutdown", settings.ShutdownTimeout.String()},
		{"Metrics", enabled(settings.Metrics.Enabled)},
		{"Tracing", enabled(settings.Telemetry.Enabled)},
		{"Profiling", enabled(settings.Telemetry.Profiling.Enabled)},
	})
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
