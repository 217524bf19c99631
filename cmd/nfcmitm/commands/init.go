package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ghostfacexx/nfcmitm/internal/cli/prompt"
	"github.com/ghostfacexx/nfcmitm/pkg/config"
	"github.com/ghostfacexx/nfcmitm/pkg/policy"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file and policy blob",
	Long: `Interactively create a configuration file plus a starting policy
blob next to it. An existing config file is overwritten after confirmation,
or without asking when --force is given. An existing policy blob is never
overwritten.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		ok, err := prompt.Confirm(fmt.Sprintf("Config %s exists, overwrite", path), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	cfg := config.GetDefaultConfig()

	tcpPort, err := prompt.Input("TCP relay port", strconv.Itoa(cfg.Relay.Port))
	if err != nil {
		return err
	}
	if p, err := strconv.Atoi(tcpPort); err == nil {
		cfg.Relay.Port = p
	}

	httpPort, err := prompt.Input("HTTP relay port", strconv.Itoa(cfg.HTTP.Port))
	if err != nil {
		return err
	}
	if p, err := strconv.Atoi(httpPort); err == nil {
		cfg.HTTP.Port = p
	}

	policyPath, err := prompt.Input("Policy blob path", filepath.Join(filepath.Dir(path), "policy.json"))
	if err != nil {
		return err
	}
	cfg.Policy.Path = policyPath

	if err := config.Save(cfg, path); err != nil {
		return exitWith(ExitConfigError, err)
	}

	if _, err := os.Stat(policyPath); os.IsNotExist(err) {
		blob, _ := json.MarshalIndent(policy.State{MITMEnabled: true}, "", "  ")
		if err := os.WriteFile(policyPath, blob, 0600); err != nil {
			return exitWith(ExitConfigError, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Policy blob created at: %s\n", policyPath)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at: %s\n\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Next steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "  1. Edit the configuration to customize your setup")
	fmt.Fprintln(cmd.OutOrStdout(), "  2. Start the proxy with: nfcmitm serve")
	return nil
}
