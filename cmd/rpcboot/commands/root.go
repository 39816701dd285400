// Package commands implements the rpcboot command line.
package commands

import (
	configcmd "github.com/marmos91/rpcboot/cmd/rpcboot/commands/config"
	"github.com/marmos91/rpcboot/internal/cli/output"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "rpcboot",
	Short: "rpcboot - discover, bind and run RPC applications",
	Long: `rpcboot boots applications declared in a discovery catalog.

It binds every RPC processor of the application scope to its single
implementation, starts the resulting servers together with the declared
lifecycle units, and stops them in reverse order on shutdown.

The bundled "greeter" application is used as the example throughout.

Use "rpcboot [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: $XDG_CONFIG_HOME/rpcboot/config.yaml)")
	rootCmd.PersistentFlags().String("app", sampleApp, "Application name, the root of its configuration keys")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(greetCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(configcmd.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the --config flag.
func GetConfigFile(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}

// GetAppName returns the --app flag.
func GetAppName(cmd *cobra.Command) string {
	name, _ := cmd.Flags().GetString("app")
	return name
}

func newPrinter(cmd *cobra.Command) (*output.Printer, error) {
	raw, _ := cmd.Flags().GetString("output")
	format, err := output.ParseFormat(raw)
	if err != nil {
		return nil, err
	}
	noColor, _ := cmd.Flags().GetBool("no-color")
	return output.NewPrinter(cmd.OutOrStdout(), format, !noColor), nil
}
