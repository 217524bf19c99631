package main

import (
	"os"

	"github.com/ghostfacexx/nfcmitm/cmd/nfcmitm/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(commands.ExitCode(err))
	}
}
