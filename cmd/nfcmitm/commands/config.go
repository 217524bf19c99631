package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ghostfacexx/nfcmitm/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Load the configuration (file, environment, defaults) and print the effective result as YAML.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return exitWith(ExitConfigError, err)
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Load(cfgFile); err != nil {
			return exitWith(ExitConfigError, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}
