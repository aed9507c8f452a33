package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	wdcfg "github.com/reservelabs/reserve-watchdog/watchdog/config"
	"github.com/reservelabs/reserve-watchdog/watchdog/cmd/rwd/daemon"
)

const BinaryName = "rwd"

// NewRootCmd creates a new root command for rwd. It is called once in the main function.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           BinaryName,
		Short:         fmt.Sprintf("%s - Reserve Watchdog Daemon.", BinaryName),
		Long:          fmt.Sprintf(`%s is the daemon running the watchdog consensus engine and SPV payment-proof verifier.`, BinaryName),
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().String(daemon.HomeFlag, wdcfg.DefaultRwdDir, "The application home directory")

	return rootCmd
}

func main() {
	cmd := NewRootCmd()

	daemon.AddDaemonCommands(cmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your rwd CLI '%s'", err)
		os.Exit(1) //nolint:gocritic
	}
}
