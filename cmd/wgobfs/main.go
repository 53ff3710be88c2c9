package main

import (
	"os"

	"github.com/spf13/cobra"

	"wgobfs/internal/flog"
)

func main() {
	root := &cobra.Command{
		Use:   "wgobfs",
		Short: "wgobfs obfuscates WireGuard UDP traffic behind a local relay",
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newKeygenCommand())

	if err := root.Execute(); err != nil {
		flog.Errorf("%v", err)
		os.Exit(1)
	}
}
