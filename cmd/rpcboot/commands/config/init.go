package config

import (
	"fmt"

	"github.com/marmos91/rpcboot/internal/cli/output"
	"github.com/marmos91/rpcboot/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample configuration file with every default spelled out and an
RPC server listening on port 7911.

Examples:
  # Default location ($XDG_CONFIG_HOME/rpcboot/config.yaml)
  rpcboot config init

  # Custom location, replacing an existing file
  rpcboot config init --config ./greeter.yaml --force`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	app, path := flags(cmd)

	written, err := config.InitConfig(app, path, initForce)
	if err != nil {
		return err
	}

	p, err := printer(cmd, output.FormatTable)
	if err != nil {
		return err
	}
	p.Success(fmt.Sprintf("Configuration written to %s", written))
	p.Printf("Start the application with:\n  rpcboot start --config %s\n", written)
	return nil
}
