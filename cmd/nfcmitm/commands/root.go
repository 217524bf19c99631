// Package commands implements the CLI commands for the nfcmitm server.
package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// Exit codes per the CLI contract.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
	ExitKeyError    = 3
	ExitBindError   = 4
)

// exitError carries a specific process exit code up to main.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

// ExitCode maps an Execute error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitFailure
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nfcmitm",
	Short: "nfcmitm - NFC relay MITM proxy",
	Long: `nfcmitm sits between an NFC relay client and a payment backend. It
accepts framed NFC messages over TCP, rewrites the embedded EMV TLV payload
according to the configured bypass policy, re-signs it, and forwards it. A
parallel HTTP listener serves the same transform for JSON clients.

Use "nfcmitm [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Called by main.main().
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		rootCmd.PrintErrf("Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/nfcmitm/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
