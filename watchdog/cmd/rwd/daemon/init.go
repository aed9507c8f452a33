package daemon

import (
	"fmt"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/spf13/cobra"

	"github.com/reservelabs/reserve-watchdog/util"
	wdcfg "github.com/reservelabs/reserve-watchdog/watchdog/config"
)

// CommandInit returns the init command of rwd daemon that creates the home directory.
func CommandInit(binaryName string) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "init",
		Short:   "Initialize a reserve-watchdog home directory.",
		Long:    `Creates a new reserve-watchdog home directory with default config`,
		Example: fmt.Sprintf(`%s init --home /home/user/.rwd --force`, binaryName),
		Args:    cobra.NoArgs,
		RunE:    runInitCmd,
	}
	cmd.Flags().Bool(forceFlag, false, "Override existing configuration")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	home, err := cmd.Flags().GetString(HomeFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", HomeFlag, err)
	}
	homePath, err := filepath.Abs(home)
	if err != nil {
		return err
	}
	homePath = util.CleanAndExpandPath(homePath)

	force, err := cmd.Flags().GetBool(forceFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", forceFlag, err)
	}

	if util.FileExists(wdcfg.CfgFile(homePath)) && !force {
		return fmt.Errorf("home path %s already initialized", homePath)
	}

	if err := util.MakeDirectory(homePath); err != nil {
		return err
	}
	// Create log directory
	logDir := wdcfg.LogDir(homePath)
	if err := util.MakeDirectory(logDir); err != nil {
		return err
	}

	defaultConfig := wdcfg.DefaultConfigWithHome(homePath)
	fileParser := flags.NewParser(&defaultConfig, flags.Default)

	return flags.NewIniParser(fileParser).WriteFile(wdcfg.CfgFile(homePath), flags.IniIncludeComments|flags.IniIncludeDefaults)
}
