package config

import (
	"github.com/marmos91/rpcboot/internal/cli/output"
	"github.com/marmos91/rpcboot/pkg/config"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Print the settings of an application after defaults, the configuration
file and environment overrides have been applied.

Examples:
  rpcboot config show
  GREETER_LOGGING_LEVEL=DEBUG rpcboot config show -o json`,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
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

	p, err := printer(cmd, output.FormatYAML)
	if err != nil {
		return err
	}
	return p.Print(map[string]*config.Settings{app: settings})
}
