package commands

import (
	"fmt"

	"github.com/marmos91/tiercache/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample tiercache configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/tiercache/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  tiercache init

  # Initialize with custom path
  tiercache init --config /etc/tiercache/config.yaml

  # Force overwrite existing config
  tiercache init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit the budgets and repository settings")
	_, _ = fmt.Fprintln(out, "  2. Import an image tree with: tiercache import <dir>")
	_, _ = fmt.Fprintln(out, "  3. Start the engine with: tiercache start")
	return nil
}
