package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/rpcboot/internal/greeter"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	greetAddr    string
	greetTimeout time.Duration
)

var greetCmd = &cobra.Command{
	Use:   "greet [name]",
	Short: "Call a running greeter",
	Long: `Send one Greet call to a running greeter application.

Examples:
  rpcboot greet Ada
  rpcboot greet --addr 10.0.0.5:7911 Ada`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGreet,
}

func init() {
	greetCmd.Flags().StringVar(&greetAddr, "addr", "localhost:7911", "Greeter address (host:port)")
	greetCmd.Flags().DurationVar(&greetTimeout, "timeout", 5*time.Second, "Call timeout")
}

func runGreet(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) == 1 {
		name = args[0]
	}

	conn, err := grpc.NewClient(greetAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", greetAddr, err)
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), greetTimeout)
	defer cancel()

	reply, err := greeter.NewClient(conn).Greet(ctx, name)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}
