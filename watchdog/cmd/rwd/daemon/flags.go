package daemon

import "github.com/spf13/cobra"

const (
	// HomeFlag is the persistent flag naming the application home
	// directory.
	HomeFlag = "home"

	forceFlag = "force"
)

// AddDaemonCommands registers the daemon commands on the root command.
func AddDaemonCommands(root *cobra.Command) {
	root.AddCommand(
		CommandInit(root.Use),
		CommandStart(root.Use),
	)
}
