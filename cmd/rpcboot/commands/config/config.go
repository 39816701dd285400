// Package config implements the configuration subcommands.
package config

import (
	"context"

	"github.com/marmos91/rpcboot/internal/cli/output"
	"github.com/marmos91/rpcboot/pkg/config"
	"github.com/spf13/cobra"
)

// Cmd is the parent command for configuration management.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Create, inspect and validate application configuration files.

Settings of an application live under its name, e.g. greeter.logging.level,
and its RPC server reads greeter.thrift.listenPort.`,
}

func init() {
	Cmd.AddCommand(initCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(schemaCmd)
	Cmd.AddCommand(showCmd)
}

func flags(cmd *cobra.Command) (app, path string) {
	app, _ = cmd.Flags().GetString("app")
	path, _ = cmd.Flags().GetString("config")
	return app, path
}

func printer(cmd *cobra.Command, fallback output.Format) (*output.Printer, error) {
	format := fallback
	if cmd.Flags().Changed("output") {
		raw, _ := cmd.Flags().GetString("output")
		var err error
		if format, err = output.ParseFormat(raw); err != nil {
			return nil, err
		}
	}
	noColor, _ := cmd.Flags().GetBool("no-color")
	return output.NewPrinter(cmd.OutOrStdout(), format, !noColor), nil
}

// openStore starts a store for app over path, or over the default files
// when path is empty. The caller stops it.
func openStore(ctx context.Context, app, path string) (*config.Store, error) {
	var opts []config.StoreOption
	if path != "" {
		opts = append(opts, config.WithFile(path))
	}
	store := config.NewStore(app, opts...)
	if err := store.Start(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func configSource(store *config.Store) string {
	if file := store.ConfigFile(); file != "" {
		return file
	}
	return "defaults and environment"
}
